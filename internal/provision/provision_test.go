package provision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/config"
	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/storage"
)

const operatorID = int64(1)

var testPlans = config.PaymentsConfig{
	UPIID: "pay@upi",
	Plans: []config.Plan{{Days: 1, Price: 2}, {Days: 7, Price: 12}, {Days: 30, Price: 25}},
}

func newService(t *testing.T) (*Service, *storage.MemStore, *gateway.Fake) {
	t.Helper()
	st := storage.NewMemStore()
	gw := gateway.NewFake()
	gw.Identity = &gateway.BotIdentity{ID: 99, Username: "clone_bot"}
	return NewService(st, gw, operatorID, testPlans), st, gw
}

func noMarkup(paymentID, userID int64) *tele.ReplyMarkup {
	return &tele.ReplyMarkup{}
}

func validToken() string {
	return "123456789:AAHdqTcvbc1vZWxkseufqzzz987654321abc"
}

func TestSubmitRequiresPlanFocus(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Submit(context.Background(), Buyer{ID: 7}, "shot-1", noMarkup)
	assert.ErrorIs(t, err, ErrNoPlanFocus)
}

func TestSubmitCreatesPendingAndPrompt(t *testing.T) {
	ctx := context.Background()
	svc, st, gw := newService(t)

	plan, err := svc.PlanFor(7, 12)
	require.NoError(t, err)
	svc.SelectPlan(7, plan)

	p, err := svc.Submit(ctx, Buyer{ID: 7, Username: "bob", DisplayName: "Bob"}, "shot-1", noMarkup)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPending, p.Status)
	assert.Equal(t, 7, p.PlanDays)
	assert.Equal(t, 12, p.PlanPrice)

	// Focus is consumed by the submission.
	_, ok := svc.SelectedPlan(7)
	assert.False(t, ok)

	prompt := gw.LastSent()
	assert.Equal(t, operatorID, prompt.ChatID)
	assert.Equal(t, gateway.KindPhoto, prompt.Media.Kind)
	assert.Equal(t, "shot-1", prompt.Media.FileID)
	assert.Contains(t, prompt.Media.Caption, "#1")
	assert.Contains(t, prompt.Media.Caption, "7 days")
	assert.NotNil(t, prompt.Markup)

	// The prompt message resolves back to the buyer.
	uid, err := st.ResolveMessage(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(7), uid)
}

func TestDecideApproveOpensSlot(t *testing.T) {
	ctx := context.Background()
	svc, st, gw := newService(t)
	plan, _ := svc.PlanFor(7, 12)
	svc.SelectPlan(7, plan)
	p, err := svc.Submit(ctx, Buyer{ID: 7, DisplayName: "Bob"}, "shot-1", noMarkup)
	require.NoError(t, err)

	require.NoError(t, svc.Decide(ctx, p.ID, true, 1001, "caption"))

	got, err := st.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusApproved, got.Status)

	slots := svc.OpenSlots()
	require.Len(t, slots, 1)
	assert.Equal(t, int64(7), slots[0].UserID)
	assert.Equal(t, 7, slots[0].PlanDays)

	edits := gw.CaptionEdits()
	require.Len(t, edits, 1)
	assert.Contains(t, edits[0].Caption, "APPROVED")

	last := gw.LastSent()
	assert.Equal(t, int64(7), last.ChatID)
	assert.Contains(t, last.Text, "Payment Approved")
}

func TestDecideRejectNotifiesWithoutSlot(t *testing.T) {
	ctx := context.Background()
	svc, st, gw := newService(t)
	plan, _ := svc.PlanFor(1, 2)
	svc.SelectPlan(9, plan)
	p, err := svc.Submit(ctx, Buyer{ID: 9, DisplayName: "Eve"}, "shot-2", noMarkup)
	require.NoError(t, err)

	require.NoError(t, svc.Decide(ctx, p.ID, false, 1001, "caption"))

	got, err := st.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusRejected, got.Status)
	assert.Empty(t, svc.OpenSlots())
	assert.Contains(t, gw.CaptionEdits()[0].Caption, "REJECTED")
	assert.Contains(t, gw.LastSent().Text, "Rejected")
}

func TestDecideTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)
	plan, _ := svc.PlanFor(7, 12)
	svc.SelectPlan(7, plan)
	p, err := svc.Submit(ctx, Buyer{ID: 7, DisplayName: "Bob"}, "shot-1", noMarkup)
	require.NoError(t, err)

	require.NoError(t, svc.Decide(ctx, p.ID, true, 1001, "caption"))
	err = svc.Decide(ctx, p.ID, false, 1001, "caption")
	assert.ErrorIs(t, err, ErrStateConflict)

	// First outcome stands.
	got, err := st.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusApproved, got.Status)

	assert.ErrorIs(t, svc.Decide(ctx, 999, true, 1001, "caption"), ErrStateConflict)
}

func approvedSlot(t *testing.T, svc *Service, userID int64, days, price int) {
	t.Helper()
	ctx := context.Background()
	plan, err := svc.PlanFor(days, price)
	require.NoError(t, err)
	svc.SelectPlan(userID, plan)
	p, err := svc.Submit(ctx, Buyer{ID: userID, DisplayName: "U"}, "shot", noMarkup)
	require.NoError(t, err)
	require.NoError(t, svc.Decide(ctx, p.ID, true, 1001, "caption"))
}

func TestRegisterCredentialIssuesClone(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)
	approvedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return approvedAt }
	approvedSlot(t, svc, 7, 7, 12)

	issued, err := svc.RegisterCredential(ctx, validToken(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), issued.UserID)
	assert.Equal(t, "clone_bot", issued.BotUsername)
	assert.Equal(t, approvedAt.Add(7*24*time.Hour), issued.Expiry)

	clone, err := st.GetClone(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, validToken(), clone.Credential)
	assert.Equal(t, issued.Expiry, clone.Expiry)

	// Slot is consumed exactly once.
	assert.Empty(t, svc.OpenSlots())
	_, err = svc.RegisterCredential(ctx, validToken(), 0)
	assert.ErrorIs(t, err, ErrNoOpenSlot)
}

func TestRegisterCredentialProbeFailureKeepsSlot(t *testing.T) {
	ctx := context.Background()
	svc, st, gw := newService(t)
	approvedSlot(t, svc, 7, 7, 12)
	gw.Identity = nil

	_, err := svc.RegisterCredential(ctx, validToken(), 0)
	assert.ErrorIs(t, err, gateway.ErrBadCredential)

	_, err = st.GetClone(ctx, 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Len(t, svc.OpenSlots(), 1)
}

func TestRegisterCredentialAmbiguousSlots(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)
	approvedSlot(t, svc, 7, 7, 12)
	approvedSlot(t, svc, 8, 30, 25)

	// Without an addressed target nothing is consumed.
	_, err := svc.RegisterCredential(ctx, validToken(), 0)
	assert.ErrorIs(t, err, ErrAmbiguousCredential)
	assert.Len(t, svc.OpenSlots(), 2)

	_, err = svc.RegisterCredential(ctx, validToken(), 9)
	assert.ErrorIs(t, err, ErrNoSlotForUser)

	issued, err := svc.RegisterCredential(ctx, validToken(), 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), issued.UserID)
	assert.Equal(t, 30, issued.PlanDays)

	slots := svc.OpenSlots()
	require.Len(t, slots, 1)
	assert.Equal(t, int64(7), slots[0].UserID)
}

func TestRegisterCredentialRenewalOverwrites(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService(t)
	approvedSlot(t, svc, 7, 7, 12)
	_, err := svc.RegisterCredential(ctx, validToken(), 0)
	require.NoError(t, err)

	approvedSlot(t, svc, 7, 30, 25)
	second := "987654321:BBHdqTcvbc1vZWxkseufqzzz123456789xyz"
	issued, err := svc.RegisterCredential(ctx, second, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, issued.PlanDays)

	clone, err := st.GetClone(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, second, clone.Credential)
}

func TestLooksLikeCredential(t *testing.T) {
	assert.True(t, LooksLikeCredential(validToken()))
	assert.False(t, LooksLikeCredential("hello"))
	assert.False(t, LooksLikeCredential("a:b"))
	assert.False(t, LooksLikeCredential("1:2:3456789012345678901234567890123456789012345"))
}

func TestPlanFor(t *testing.T) {
	svc, _, _ := newService(t)

	p, err := svc.PlanFor(30, 25)
	require.NoError(t, err)
	assert.Equal(t, 30, p.Days)

	_, err = svc.PlanFor(30, 10)
	assert.ErrorIs(t, err, ErrUnknownPlan)
}
