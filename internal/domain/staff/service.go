package staff

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/warung-pos/internal/domain/apperr"
	"github.com/xenking/warung-pos/internal/domain/auth"
)

const (
	secretBytes  = 32
	secretPrefix = "pos_"
	maxNameLen   = 100
)

var handlePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,31}$`)

// Service validates staff changes and issues API keys.
type Service struct {
	users  Repository
	pepper []byte
	now    func() time.Time
	random io.Reader
}

// NewService creates a staff Service. Issued keys are hashed with pepper,
// which must match the one the authenticator uses.
func NewService(users Repository, pepper []byte) *Service {
	return &Service{users: users, pepper: pepper, now: time.Now, random: rand.Reader}
}

func (d Draft) toUser(id string) (*User, error) {
	handle := strings.ToLower(strings.TrimSpace(d.Handle))
	if !handlePattern.MatchString(handle) {
		return nil, apperr.Invalid("handle", "must be 2-32 lowercase letters, digits, '.', '_' or '-'")
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, apperr.Invalid("name", "must not be blank")
	}
	if len(name) > maxNameLen {
		return nil, apperr.Invalid("name", "too long")
	}
	role, err := auth.ParseRole(d.Role)
	if err != nil {
		return nil, apperr.Invalid("role", err.Error())
	}
	if role == auth.RoleCustomer {
		return nil, apperr.Invalid("role", "customers are not staff")
	}
	return &User{ID: id, Handle: handle, Name: name, Role: role}, nil
}

// List returns staff matching query by name or handle.
func (s *Service) List(ctx context.Context, query string) ([]User, error) {
	users, err := s.users.List(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, apperr.Persistence("list staff", err)
	}
	return users, nil
}

// Get returns a single staff user.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr("get staff", id, err)
	}
	return u, nil
}

// Create validates d and adds a staff user without keys.
func (s *Service) Create(ctx context.Context, d Draft) (*User, error) {
	u, err := d.toUser(uuid.New().String())
	if err != nil {
		return nil, err
	}
	u.CreatedAt = s.now()
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrHandleTaken) {
			return nil, apperr.Precondition("create staff", ErrHandleTaken)
		}
		return nil, apperr.Persistence("create staff", err)
	}
	zctx.From(ctx).Info("Staff user created",
		zap.String("user_id", u.ID),
		zap.String("staff_role", string(u.Role)),
	)
	return u, nil
}

// Update replaces handle, name and role. Admins cannot change their own
// role.
func (s *Service) Update(ctx context.Context, actor auth.Principal, id string, d Draft) (*User, error) {
	u, err := d.toUser(id)
	if err != nil {
		return nil, err
	}
	if id == actor.UserID && u.Role != actor.Role {
		return nil, apperr.Precondition("update staff", ErrSelfRoleChange)
	}
	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr("update staff", id, err)
	}
	u.CreatedAt = current.CreatedAt

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, ErrHandleTaken) {
			return nil, apperr.Precondition("update staff", ErrHandleTaken)
		}
		return nil, notFoundOr("update staff", id, err)
	}
	return u, nil
}

// Delete retires a user and revokes its keys.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, id string) error {
	if id == actor.UserID {
		return apperr.Precondition("delete staff", ErrSelfDelete)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return notFoundOr("delete staff", id, err)
	}
	zctx.From(ctx).Info("Staff user deleted", zap.String("user_id", id))
	return nil
}

// Keys lists the keys of a user, revoked ones included.
func (s *Service) Keys(ctx context.Context, userID string) ([]Key, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	keys, err := s.users.ListKeys(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence("list api keys", err)
	}
	return keys, nil
}

// IssueKey creates a new API key for userID and returns its secret.
func (s *Service) IssueKey(ctx context.Context, userID, name string) (*IssuedKey, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = u.Name + " key"
	}
	if len(name) > maxNameLen {
		return nil, apperr.Invalid("name", "too long")
	}

	buf := make([]byte, secretBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return nil, errors.Wrap(err, "generate api key")
	}
	secret := secretPrefix + base64.RawURLEncoding.EncodeToString(buf)

	k := &IssuedKey{
		Key: Key{
			ID:        uuid.New().String(),
			UserID:    u.ID,
			Name:      name,
			Active:    true,
			CreatedAt: s.now(),
		},
		Secret: secret,
	}
	if err := s.users.CreateKey(ctx, &k.Key, auth.HashKey(s.pepper, secret)); err != nil {
		return nil, apperr.Persistence("create api key", err)
	}
	zctx.From(ctx).Info("API key issued",
		zap.String("user_id", u.ID),
		zap.String("key_id", k.ID),
	)
	return k, nil
}

// RevokeKey deactivates one key of userID.
func (s *Service) RevokeKey(ctx context.Context, userID, keyID string) error {
	err := s.users.RevokeKey(ctx, userID, keyID)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return &apperr.NotFoundError{Entity: "api key", ID: keyID}
	case err != nil:
		return notFoundOr("revoke api key", userID, err)
	}
	zctx.From(ctx).Info("API key revoked",
		zap.String("user_id", userID),
		zap.String("key_id", keyID),
	)
	return nil
}

func notFoundOr(op, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &apperr.NotFoundError{Entity: "staff user", ID: id}
	}
	return apperr.Persistence(op, err)
}
