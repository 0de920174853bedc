// Package staff manages employee accounts and the API keys their terminals
// sign in with.
package staff

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/warung-pos/internal/domain/auth"
)

var (
	// ErrNotFound is returned when no active staff user matches.
	ErrNotFound = errors.New("staff user not found")
	// ErrHandleTaken is returned by Create and Update on a duplicate handle.
	ErrHandleTaken = errors.New("handle already in use")
	// ErrKeyNotFound is returned when the user holds no such key.
	ErrKeyNotFound = errors.New("api key not found")

	ErrSelfDelete     = errors.New("cannot delete your own account")
	ErrSelfRoleChange = errors.New("cannot change your own role")
)

// User is a staff account. Customers live in the same table but are managed
// by the customer package.
type User struct {
	ID        string
	Handle    string
	Name      string
	Role      auth.Role
	CreatedAt time.Time
}

// Key describes an API key without its secret.
type Key struct {
	ID        string
	UserID    string
	Name      string
	Active    bool
	CreatedAt time.Time
}

// IssuedKey is a key right after creation. Secret is returned once; only
// its HMAC is stored.
type IssuedKey struct {
	Key
	Secret string
}

// Draft is the admin input for creating or editing a user.
type Draft struct {
	Handle string
	Name   string
	Role   string
}

// Repository defines staff storage.
type Repository interface {
	// List returns staff whose name or handle contains query,
	// case-insensitively. An empty query lists everyone.
	List(ctx context.Context, query string) ([]User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	// Delete retires the user and deactivates all of its keys. Past orders
	// and payments keep referring to it.
	Delete(ctx context.Context, id string) error

	CreateKey(ctx context.Context, k *Key, hash string) error
	ListKeys(ctx context.Context, userID string) ([]Key, error)
	RevokeKey(ctx context.Context, userID, keyID string) error
}
