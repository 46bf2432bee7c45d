// Package broadcast delivers one operator message to every known
// non-banned user with bounded concurrency.
package broadcast

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/logger"
	"github.com/samrelay/relayhub/internal/storage"
)

// Result tallies a finished broadcast.
type Result struct {
	Sent   int
	Failed int
}

// Service fans a message out to the user base. Each delivery is
// independent: one failing recipient never blocks or aborts the rest.
type Service struct {
	store       storage.Store
	gw          gateway.Gateway
	concurrency int
}

func NewService(store storage.Store, gw gateway.Gateway, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{store: store, gw: gw, concurrency: concurrency}
}

// Send delivers media to every non-banned user and reports the tally.
// Only the recipient-listing step can fail as a whole; per-recipient
// errors are counted, logged and swallowed.
func (s *Service) Send(ctx context.Context, m gateway.Media) (Result, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return Result{}, err
	}

	var sent, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, u := range users {
		u := u
		g.Go(func() error {
			if _, err := s.gw.SendMedia(gctx, u.ID, m); err != nil {
				failed.Add(1)
				logger.Cast.Warn("broadcast delivery failed",
					slog.String("event", "cast.send"),
					slog.Int64("user_id", u.ID),
					slog.String("err", err.Error()),
				)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	// Goroutines never return errors; Wait only joins them.
	_ = g.Wait()

	res := Result{Sent: int(sent.Load()), Failed: int(failed.Load())}
	logger.Cast.Info("broadcast finished",
		slog.String("event", "cast.done"),
		slog.Int("sent", res.Sent),
		slog.Int("failed", res.Failed),
	)
	return res, nil
}
