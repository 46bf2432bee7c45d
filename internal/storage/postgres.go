package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/samrelay/relayhub/internal/logger"
	"log/slog"
)

// sqlStore implements Store on top of Postgres via sqlx.
type sqlStore struct {
	db *sqlx.DB
}

// NewStore returns a Postgres-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &u, nil
}

func (s *sqlStore) UpsertUser(ctx context.Context, id int64, username, displayName string) error {
	var name sql.NullString
	if strings.TrimSpace(username) != "" {
		name = sql.NullString{String: username, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, display_name = EXCLUDED.display_name`,
		id, name, displayName,
	)
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", id, err)
	}
	return nil
}

func (s *sqlStore) SetBanned(ctx context.Context, id int64, banned bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET banned = $2 WHERE id = $1`, id, banned)
	if err != nil {
		return fmt.Errorf("set banned %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Ban may target a user the hub has never seen; record it so the
		// flag survives their first contact.
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO users (id, display_name, banned) VALUES ($1, '', $2) ON CONFLICT (id) DO UPDATE SET banned = EXCLUDED.banned`,
			id, banned,
		)
		if err != nil {
			return fmt.Errorf("set banned %d: %w", id, err)
		}
	}
	logger.DB.Info("user ban flag updated",
		slog.String("event", "db.user.ban"),
		slog.Int64("user_id", id),
		slog.Bool("banned", banned),
	)
	return nil
}

func (s *sqlStore) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users, `SELECT * FROM users WHERE NOT banned ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *sqlStore) ListBanned(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users, `SELECT * FROM users WHERE banned ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list banned: %w", err)
	}
	return users, nil
}

func (s *sqlStore) MapMessage(ctx context.Context, userID, messageID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO message_links (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id) DO NOTHING`,
		messageID, userID,
	)
	if err != nil {
		return fmt.Errorf("map message %d -> %d: %w", messageID, userID, err)
	}
	return nil
}

func (s *sqlStore) ResolveMessage(ctx context.Context, messageID int64) (int64, error) {
	var userID int64
	err := s.db.GetContext(ctx, &userID, `SELECT user_id FROM message_links WHERE message_id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve message %d: %w", messageID, err)
	}
	return userID, nil
}

func (s *sqlStore) CreatePayment(ctx context.Context, p *Payment) error {
	if p == nil {
		return fmt.Errorf("create payment: nil payment")
	}
	p.Status = StatusPending
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO payments (user_id, plan_days, plan_price, screenshot_ref, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.UserID, p.PlanDays, p.PlanPrice, p.ScreenshotRef, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("create payment for %d: %w", p.UserID, err)
	}
	logger.DB.Info("payment created",
		slog.String("event", "db.payment.create"),
		slog.Int64("payment_id", p.ID),
		slog.Int64("user_id", p.UserID),
		slog.Int("plan_days", p.PlanDays),
	)
	return nil
}

func (s *sqlStore) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	var p Payment
	err := s.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return &p, nil
}

func (s *sqlStore) ListPayments(ctx context.Context, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 20
	}
	var payments []Payment
	err := s.db.SelectContext(ctx, &payments, `SELECT * FROM payments ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

func (s *sqlStore) SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) (bool, error) {
	// The pending guard is the single-transition authority: concurrent
	// decisions race here and exactly one update wins.
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $2 WHERE id = $1 AND status = $3`,
		id, status, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("set payment %d status %s: %w", id, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set payment %d status %s: %w", id, status, err)
	}
	return n == 1, nil
}

func (s *sqlStore) UpsertClone(ctx context.Context, userID int64, credential string, expiry time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clones (user_id, credential, expiry)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET credential = EXCLUDED.credential, expiry = EXCLUDED.expiry, updated_at = now()`,
		userID, credential, expiry,
	)
	if err != nil {
		return fmt.Errorf("upsert clone for %d: %w", userID, err)
	}
	return nil
}

func (s *sqlStore) GetClone(ctx context.Context, userID int64) (*Clone, error) {
	var c Clone
	err := s.db.GetContext(ctx, &c, `SELECT * FROM clones WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clone for %d: %w", userID, err)
	}
	return &c, nil
}

func (s *sqlStore) CatalogText(ctx context.Context) (string, error) {
	var body string
	err := s.db.GetContext(ctx, &body, `SELECT body FROM catalog WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get catalog text: %w", err)
	}
	return body, nil
}

func (s *sqlStore) SetCatalogText(ctx context.Context, body string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog (id, body)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		body,
	)
	if err != nil {
		return fmt.Errorf("set catalog text: %w", err)
	}
	return nil
}

func (s *sqlStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT count(*) FROM users WHERE NOT banned)                    AS users,
			(SELECT count(*) FROM users WHERE banned)                        AS banned,
			(SELECT count(*) FROM payments WHERE status = 'pending')         AS pending_payments,
			(SELECT count(*) FROM payments WHERE status = 'approved')        AS approved_payments,
			(SELECT count(*) FROM clones WHERE expiry > now())               AS active_clones`,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}
