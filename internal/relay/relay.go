// Package relay forwards user content to the operator and routes
// operator replies back, using stored message links to recover the
// originating user.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/logger"
	"github.com/samrelay/relayhub/internal/storage"
)

// ErrNoMapping is returned when a reply does not reference a tracked
// forwarded message.
var ErrNoMapping = errors.New("relay: reply target not tracked")

// Sender identifies the user whose content is being forwarded.
type Sender struct {
	ID          int64
	Username    string
	DisplayName string
}

var ackPhrases = []string{
	"✅ Message sent to admin! You'll hear back soon.",
	"📬 Delivered! Admin will reply shortly.",
	"✅ Got it, forwarded to admin.",
	"📨 Your message reached the admin.",
	"✅ Sent! Please wait for a reply.",
}

// Service relays content between users and the single operator chat.
type Service struct {
	store      storage.Store
	gw         gateway.Gateway
	operatorID int64
}

func NewService(store storage.Store, gw gateway.Gateway, operatorID int64) *Service {
	return &Service{store: store, gw: gw, operatorID: operatorID}
}

// ForwardToOperator delivers a user's content to the operator chat:
// first an identity header, then the content itself. Both emitted
// message ids are linked back to the sender so future operator replies
// resolve. Returns the acknowledgement phrase for the user.
func (s *Service) ForwardToOperator(ctx context.Context, from Sender, m gateway.Media) (string, error) {
	header := headerFor(from)
	headerID, err := s.gw.SendText(ctx, s.operatorID, header, true)
	if err != nil {
		return "", fmt.Errorf("forward header from %d: %w", from.ID, err)
	}
	if err := s.store.MapMessage(ctx, from.ID, headerID); err != nil {
		return "", err
	}

	contentID, err := s.gw.SendMedia(ctx, s.operatorID, m)
	if err != nil {
		// The header link already exists; a header-only link is harmless
		// and still resolves replies to the right user.
		return "", fmt.Errorf("forward content from %d: %w", from.ID, err)
	}
	if err := s.store.MapMessage(ctx, from.ID, contentID); err != nil {
		return "", err
	}

	logger.Relay.Info("message forwarded",
		slog.String("event", "relay.forward"),
		slog.Int64("user_id", from.ID),
		slog.String("kind", string(m.Kind)),
	)
	return ackPhrases[rand.Intn(len(ackPhrases))], nil
}

// ResolveReply maps an operator-chat message id back to the user who
// originated it, or ErrNoMapping.
func (s *Service) ResolveReply(ctx context.Context, repliedToID int64) (int64, error) {
	userID, err := s.store.ResolveMessage(ctx, repliedToID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, ErrNoMapping
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

// ForwardToUser delivers the operator's reply content to the user who
// originated the replied-to message. Replies are terminal: no new link
// is recorded.
func (s *Service) ForwardToUser(ctx context.Context, repliedToID int64, m gateway.Media) (int64, error) {
	userID, err := s.ResolveReply(ctx, repliedToID)
	if err != nil {
		return 0, err
	}
	if _, err := s.gw.SendMedia(ctx, userID, m); err != nil {
		return userID, fmt.Errorf("reply to %d: %w", userID, err)
	}
	logger.Relay.Info("reply delivered",
		slog.String("event", "relay.reply"),
		slog.Int64("user_id", userID),
		slog.String("kind", string(m.Kind)),
	)
	return userID, nil
}

func headerFor(from Sender) string {
	username := from.Username
	if username == "" {
		username = "None"
	}
	return fmt.Sprintf(
		"📨 New Message from User\n"+
			"━━━━━━━━━━━━━━━━\n"+
			"👤 Name: %s\n"+
			"🆔 ID: <code>%d</code>\n"+
			"📱 Username: @%s\n\n"+
			"💬 Content below:",
		from.DisplayName, from.ID, username,
	)
}
