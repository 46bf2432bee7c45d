package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("storage: not found")

// Store is the persistence contract of the hub. Identity (users and
// message links), the payment ledger (payments and clones), and the
// catalog text all live behind it.
type Store interface {
	// Identity
	GetUser(ctx context.Context, id int64) (*User, error)
	UpsertUser(ctx context.Context, id int64, username, displayName string) error
	SetBanned(ctx context.Context, id int64, banned bool) error
	ListUsers(ctx context.Context) ([]User, error)
	ListBanned(ctx context.Context) ([]User, error)

	// Message links
	MapMessage(ctx context.Context, userID, messageID int64) error
	ResolveMessage(ctx context.Context, messageID int64) (int64, error)

	// Payment ledger
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, limit int) ([]Payment, error)
	// SetPaymentStatus moves a payment out of pending. It reports false
	// when the row is missing or already decided, leaving it untouched.
	SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) (bool, error)

	UpsertClone(ctx context.Context, userID int64, credential string, expiry time.Time) error
	GetClone(ctx context.Context, userID int64) (*Clone, error)

	// Catalog
	CatalogText(ctx context.Context) (string, error)
	SetCatalogText(ctx context.Context, body string) error

	Stats(ctx context.Context) (*Stats, error)
}
