package storage

import (
	"database/sql"
	"time"
)

// PaymentStatus enumerates the lifecycle of a submitted payment.
// A payment transitions out of pending exactly once.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusApproved PaymentStatus = "approved"
	StatusRejected PaymentStatus = "rejected"
)

// User is a gateway participant known to the hub. Users are created on
// first contact and never deleted; ban/unban is the only mutation.
type User struct {
	ID          int64          `db:"id"`
	Username    sql.NullString `db:"username"`
	DisplayName string         `db:"display_name"`
	Banned      bool           `db:"banned"`
	CreatedAt   time.Time      `db:"created_at"`
}

// UsernameOr returns the username or a fallback when none is set.
func (u User) UsernameOr(fallback string) string {
	if u.Username.Valid && u.Username.String != "" {
		return u.Username.String
	}
	return fallback
}

// MessageLink ties a message delivered to the operator chat back to the
// user whose content it carries. Links are immutable and kept forever so
// replies to old threads still resolve.
type MessageLink struct {
	MessageID int64     `db:"message_id"`
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Payment is one submitted purchase awaiting or past operator decision.
type Payment struct {
	ID            int64         `db:"id"`
	UserID        int64         `db:"user_id"`
	PlanDays      int           `db:"plan_days"`
	PlanPrice     int           `db:"plan_price"`
	ScreenshotRef string        `db:"screenshot_ref"`
	Status        PaymentStatus `db:"status"`
	CreatedAt     time.Time     `db:"created_at"`
}

// Clone is the provisioned secondary bot instance of a user. One row per
// user; a renewal overwrites credential and expiry.
type Clone struct {
	UserID     int64     `db:"user_id"`
	Credential string    `db:"credential"`
	Expiry     time.Time `db:"expiry"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// DaysLeft reports whole days until the clone expires, never negative.
func (c Clone) DaysLeft(now time.Time) int {
	d := int(c.Expiry.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Stats aggregates counters for the operator dashboard.
type Stats struct {
	Users            int `db:"users"`
	Banned           int `db:"banned"`
	PendingPayments  int `db:"pending_payments"`
	ApprovedPayments int `db:"approved_payments"`
	ActiveClones     int `db:"active_clones"`
}
