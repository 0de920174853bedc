package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/warung-pos/db"
	"github.com/xenking/warung-pos/internal/domain/auth"
	"github.com/xenking/warung-pos/internal/domain/menu"
	"github.com/xenking/warung-pos/internal/storage/postgres"
)

type menuItemJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
}

type staffKey struct {
	role auth.Role
	name string
	key  string
}

func main() {
	var (
		databaseURL  string
		menuFile     string
		apiKeyPepper string
		adminKey     string
		managerKey   string
		cashierKey   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "", "path to menu JSON file (defaults to the embedded catalog)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or POS_API_KEY_PEPPER env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or POS_SEED_ADMIN_KEY env)")
	flag.StringVar(&managerKey, "manager-key", "", "manager API key to seed (or POS_SEED_MANAGER_KEY env)")
	flag.StringVar(&cashierKey, "cashier-key", "", "cashier API key to seed (or POS_SEED_CASHIER_KEY env)")
	flag.Parse()

	databaseURL = orEnv(databaseURL, "DATABASE_URL")
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	apiKeyPepper = orEnv(apiKeyPepper, "POS_API_KEY_PEPPER")
	if apiKeyPepper == "" {
		slog.Error("API key pepper is required: set --api-key-pepper or POS_API_KEY_PEPPER")
		os.Exit(1)
	}

	staff := []staffKey{
		{role: auth.RoleAdmin, name: "Pemilik", key: orEnv(adminKey, "POS_SEED_ADMIN_KEY")},
		{role: auth.RoleManager, name: "Manajer", key: orEnv(managerKey, "POS_SEED_MANAGER_KEY")},
		{role: auth.RoleCashier, name: "Kasir", key: orEnv(cashierKey, "POS_SEED_CASHIER_KEY")},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, menuFile, []byte(apiKeyPepper), staff); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
}

func run(ctx context.Context, databaseURL, menuFile string, pepper []byte, staff []staffKey) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	seeder := postgres.NewSeeder(pool)

	if err := seedMenu(ctx, seeder, menuFile); err != nil {
		return errors.Wrap(err, "seed menu")
	}

	if err := seedStaff(ctx, seeder, pepper, staff); err != nil {
		return errors.Wrap(err, "seed staff")
	}

	return nil
}

func seedMenu(ctx context.Context, seeder *postgres.Seeder, menuFile string) error {
	data := db.Menu
	if menuFile != "" {
		slog.Info("reading menu file", slog.String("path", menuFile))

		b, err := os.ReadFile(menuFile)
		if err != nil {
			return errors.Wrap(err, "read menu file")
		}
		data = b
	}

	var items []menuItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	slog.Info("upserting menu items", slog.Int("count", len(items)))

	for _, it := range items {
		cat, ok := menu.ParseCategory(it.Category)
		if !ok {
			return errors.Errorf("menu item %s: unknown category %q", it.ID, it.Category)
		}
		if !it.Price.IsInteger() || !it.Price.IsPositive() {
			return errors.Errorf("menu item %s: price %s is not a positive whole amount", it.ID, it.Price)
		}

		if err := seeder.UpsertMenuItem(ctx, &menu.Item{
			ID:          it.ID,
			Name:        it.Name,
			Category:    cat,
			Price:       it.Price,
			Description: it.Description,
			Available:   true,
		}); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", it.ID)
		}

		slog.Info("upserted menu item", slog.String("id", it.ID), slog.String("name", it.Name))
	}

	return nil
}

func seedStaff(ctx context.Context, seeder *postgres.Seeder, pepper []byte, staff []staffKey) error {
	for _, s := range staff {
		if s.key == "" {
			slog.Info("skipping staff without key", slog.String("role", string(s.role)))
			continue
		}

		id := "staff-" + string(s.role)
		if err := seeder.UpsertStaff(ctx, postgres.Staff{
			ID:      id,
			Handle:  string(s.role),
			Name:    s.name,
			Role:    s.role,
			KeyID:   "key-" + string(s.role),
			KeyHash: auth.HashKey(pepper, s.key),
		}); err != nil {
			return errors.Wrapf(err, "upsert %s", s.role)
		}

		slog.Info("upserted staff", slog.String("id", id), slog.String("role", string(s.role)))
	}

	return nil
}
