// Package provision drives clone subscriptions: plan selection, payment
// submission, operator decision and credential issuance.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/config"
	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/logger"
	"github.com/samrelay/relayhub/internal/storage"
)

var (
	// ErrNoPlanFocus means a screenshot arrived without a selected plan.
	ErrNoPlanFocus = errors.New("provision: no plan selected")
	// ErrUnknownPlan means the chosen plan is not in the catalog.
	ErrUnknownPlan = errors.New("provision: unknown plan")
	// ErrStateConflict means the payment was already decided or missing.
	ErrStateConflict = errors.New("provision: payment already decided")
	// ErrNoOpenSlot means a credential arrived with no approval waiting.
	ErrNoOpenSlot = errors.New("provision: no credential slot open")
	// ErrNoSlotForUser means the addressed user has no open slot.
	ErrNoSlotForUser = errors.New("provision: no slot for that user")
	// ErrAmbiguousCredential means several slots are open and the
	// credential did not name its target.
	ErrAmbiguousCredential = errors.New("provision: several slots open, address the target user")
)

// Buyer identifies the user submitting a payment.
type Buyer struct {
	ID          int64
	Username    string
	DisplayName string
}

// Slot is an open credential wait for one approved payment.
type Slot struct {
	PaymentID  int64
	UserID     int64
	PlanDays   int
	ApprovedAt time.Time
}

// Issued describes a successfully provisioned clone.
type Issued struct {
	UserID      int64
	PaymentID   int64
	BotUsername string
	PlanDays    int
	Expiry      time.Time
}

// Service owns the transient plan focus and credential slots. Both maps
// are process-wide and guarded by one mutex; the mutex is never held
// across a gateway call.
type Service struct {
	store      storage.Store
	gw         gateway.Gateway
	operatorID int64
	plans      []config.Plan
	upiID      string

	mu    sync.Mutex
	focus map[int64]config.Plan
	slots map[int64]Slot
	clock func() time.Time
}

func NewService(store storage.Store, gw gateway.Gateway, operatorID int64, pay config.PaymentsConfig) *Service {
	return &Service{
		store:      store,
		gw:         gw,
		operatorID: operatorID,
		plans:      pay.Plans,
		upiID:      pay.UPIID,
		focus:      make(map[int64]config.Plan),
		slots:      make(map[int64]Slot),
		clock:      time.Now,
	}
}

// Plans returns the catalog's ordered plan set.
func (s *Service) Plans() []config.Plan {
	return s.plans
}

// UPIID returns the payment collection address shown to buyers.
func (s *Service) UPIID() string {
	return s.upiID
}

// PlanFor looks up a catalog plan by its exact days/price pair.
func (s *Service) PlanFor(days, price int) (config.Plan, error) {
	for _, p := range s.plans {
		if p.Days == days && p.Price == price {
			return p, nil
		}
	}
	return config.Plan{}, ErrUnknownPlan
}

// SelectPlan gives the user a plan focus; their next screenshot becomes
// a payment for this plan.
func (s *Service) SelectPlan(userID int64, plan config.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus[userID] = plan
}

// SelectedPlan reports the user's current plan focus.
func (s *Service) SelectedPlan(userID int64) (config.Plan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.focus[userID]
	return p, ok
}

// ClearFocus drops the user's plan focus, reporting whether one was set.
func (s *Service) ClearFocus(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.focus[userID]
	delete(s.focus, userID)
	return ok
}

// Submit turns a screenshot from a plan-focused buyer into a pending
// payment and dispatches the approval prompt to the operator. The prompt
// message is linked to the buyer so operator replies to it resolve. The
// markup carries the Approve/Reject controls built by the caller.
// Returns ErrNoPlanFocus when the buyer holds no focus.
func (s *Service) Submit(ctx context.Context, buyer Buyer, screenshotRef string, markup func(paymentID, userID int64) *tele.ReplyMarkup) (*storage.Payment, error) {
	s.mu.Lock()
	plan, ok := s.focus[buyer.ID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoPlanFocus
	}

	p := &storage.Payment{
		UserID:        buyer.ID,
		PlanDays:      plan.Days,
		PlanPrice:     plan.Price,
		ScreenshotRef: screenshotRef,
	}
	if err := s.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.focus, buyer.ID)
	s.mu.Unlock()

	promptID, err := s.gw.SendMediaMarkup(ctx, s.operatorID, gateway.Media{
		Kind:    gateway.KindPhoto,
		FileID:  screenshotRef,
		Caption: promptCaption(p, buyer),
	}, markup(p.ID, buyer.ID))
	if err != nil {
		return p, fmt.Errorf("dispatch approval prompt for payment %d: %w", p.ID, err)
	}
	if err := s.store.MapMessage(ctx, buyer.ID, promptID); err != nil {
		return p, err
	}

	logger.Pay.Info("payment submitted",
		slog.String("event", "pay.submit"),
		slog.Int64("payment_id", p.ID),
		slog.Int64("user_id", buyer.ID),
		slog.Int("plan_days", plan.Days),
	)
	return p, nil
}

// Decide resolves a pending payment. The transition happens at most
// once: a second decision returns ErrStateConflict and touches nothing.
// On approval a credential slot opens for the buyer and they are told to
// send a bot token; on rejection they are notified and no slot opens.
// The approval prompt's caption is rewritten to show the outcome.
func (s *Service) Decide(ctx context.Context, paymentID int64, approve bool, promptMsgID int64, promptCaption string) error {
	status := storage.StatusRejected
	if approve {
		status = storage.StatusApproved
	}
	ok, err := s.store.SetPaymentStatus(ctx, paymentID, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStateConflict
	}

	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}

	if approve {
		s.mu.Lock()
		s.slots[p.UserID] = Slot{
			PaymentID:  paymentID,
			UserID:     p.UserID,
			PlanDays:   p.PlanDays,
			ApprovedAt: s.clock(),
		}
		s.mu.Unlock()
	}

	suffix := "\n\n❌ REJECTED"
	if approve {
		suffix = "\n\n✅ APPROVED - Awaiting bot token"
	}
	if err := s.gw.EditCaption(ctx, s.operatorID, promptMsgID, promptCaption+suffix); err != nil {
		logger.Pay.Warn("prompt caption edit failed",
			slog.String("event", "pay.decide"),
			slog.Int64("payment_id", paymentID),
			slog.String("err", err.Error()),
		)
	}

	notice := "❌ Payment Rejected\n\nPlease contact admin for details."
	if approve {
		notice = "🎉 Payment Approved!\n\n" +
			"Now send your bot token:\n" +
			"1. Go to @BotFather\n" +
			"2. Create new bot (/newbot)\n" +
			"3. Copy bot token\n" +
			"4. Send it here"
	}
	if _, err := s.gw.SendText(ctx, p.UserID, notice, false); err != nil {
		logger.Pay.Warn("decision notice failed",
			slog.String("event", "pay.decide"),
			slog.Int64("user_id", p.UserID),
			slog.String("err", err.Error()),
		)
	}

	logger.Pay.Info("payment decided",
		slog.String("event", "pay.decide"),
		slog.Int64("payment_id", paymentID),
		slog.Int64("user_id", p.UserID),
		slog.String("status", string(status)),
	)
	return nil
}

// LooksLikeCredential reports whether operator text has the structural
// shape of a bot token. It is a cheap pre-filter, not a validation.
func LooksLikeCredential(text string) bool {
	return strings.Count(text, ":") == 1 && len(text) > 40
}

// OpenSlots returns the open credential slots ordered by user id.
func (s *Service) OpenSlots() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// HasSlot reports whether the user has an open credential slot.
func (s *Service) HasSlot(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[userID]
	return ok
}

// RegisterCredential validates a candidate token against the live
// platform and, on success, provisions the clone for the slot's user.
// target selects the slot when several are open; pass 0 to mean
// "the only one". With multiple slots open and no target the call fails
// with ErrAmbiguousCredential and consumes nothing. The clone's expiry
// is the approval time plus the plan duration. A failed probe leaves the
// slot open for retry.
func (s *Service) RegisterCredential(ctx context.Context, token string, target int64) (*Issued, error) {
	s.mu.Lock()
	var slot Slot
	switch {
	case len(s.slots) == 0:
		s.mu.Unlock()
		return nil, ErrNoOpenSlot
	case target != 0:
		var ok bool
		slot, ok = s.slots[target]
		if !ok {
			s.mu.Unlock()
			return nil, ErrNoSlotForUser
		}
	case len(s.slots) == 1:
		for _, slot = range s.slots {
		}
	default:
		s.mu.Unlock()
		return nil, ErrAmbiguousCredential
	}
	s.mu.Unlock()

	// Probe outside the lock; validation is a network round-trip.
	identity, err := s.gw.ValidateCredential(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("validate credential for user %d: %w", slot.UserID, err)
	}

	s.mu.Lock()
	current, ok := s.slots[slot.UserID]
	if !ok || current.PaymentID != slot.PaymentID {
		// The slot was consumed by a concurrent registration.
		s.mu.Unlock()
		return nil, ErrNoSlotForUser
	}
	delete(s.slots, slot.UserID)
	s.mu.Unlock()

	expiry := slot.ApprovedAt.Add(time.Duration(slot.PlanDays) * 24 * time.Hour)
	if err := s.store.UpsertClone(ctx, slot.UserID, token, expiry); err != nil {
		// Re-open the slot so the operator can retry after a store error.
		s.mu.Lock()
		s.slots[slot.UserID] = slot
		s.mu.Unlock()
		return nil, err
	}

	issued := &Issued{
		UserID:      slot.UserID,
		PaymentID:   slot.PaymentID,
		BotUsername: identity.Username,
		PlanDays:    slot.PlanDays,
		Expiry:      expiry,
	}

	if _, err := s.gw.SendText(ctx, slot.UserID,
		fmt.Sprintf("🎉 Your Clone Bot is Ready!\n\nBot: @%s\nValidity: %d days\n\nStart your bot now!",
			issued.BotUsername, issued.PlanDays), false); err != nil {
		logger.Pay.Warn("issuance notice failed",
			slog.String("event", "pay.issue"),
			slog.Int64("user_id", slot.UserID),
			slog.String("err", err.Error()),
		)
	}

	logger.Pay.Info("clone provisioned",
		slog.String("event", "pay.issue"),
		slog.Int64("payment_id", slot.PaymentID),
		slog.Int64("user_id", slot.UserID),
		slog.Int("plan_days", slot.PlanDays),
	)
	return issued, nil
}

func promptCaption(p *storage.Payment, buyer Buyer) string {
	username := buyer.Username
	if username == "" {
		username = "None"
	}
	return fmt.Sprintf(
		"💳 New Payment!\n"+
			"━━━━━━━━━━━━━━━━\n"+
			"Payment ID: #%d\n"+
			"👤 User: %s\n"+
			"🆔 ID: %d\n"+
			"📱 Username: @%s\n\n"+
			"📦 Plan: %d days\n"+
			"💰 Amount: ₹%d",
		p.ID, buyer.DisplayName, buyer.ID, username, p.PlanDays, p.PlanPrice,
	)
}
