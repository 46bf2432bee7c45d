package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreUserLifecycle(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	require.NoError(t, st.UpsertUser(ctx, 42, "alice", "Alice"))
	u, err := st.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UsernameOr("no username"))
	assert.False(t, u.Banned)

	// Re-upsert updates identity fields only.
	require.NoError(t, st.UpsertUser(ctx, 42, "", "Alice B"))
	u, err = st.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "no username", u.UsernameOr("no username"))
	assert.Equal(t, "Alice B", u.DisplayName)

	require.NoError(t, st.SetBanned(ctx, 42, true))
	banned, err := st.ListBanned(ctx)
	require.NoError(t, err)
	require.Len(t, banned, 1)
	assert.Equal(t, int64(42), banned[0].ID)

	active, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMemStoreMessageLinks(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	require.NoError(t, st.MapMessage(ctx, 42, 900))
	// First writer wins for a given message id.
	require.NoError(t, st.MapMessage(ctx, 7, 900))

	uid, err := st.ResolveMessage(ctx, 900)
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)

	_, err = st.ResolveMessage(ctx, 901)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStorePaymentTransitionOnce(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	p := &Payment{UserID: 7, PlanDays: 7, PlanPrice: 12, ScreenshotRef: "file-1"}
	require.NoError(t, st.CreatePayment(ctx, p))
	require.NotZero(t, p.ID)
	assert.Equal(t, StatusPending, p.Status)

	ok, err := st.SetPaymentStatus(ctx, p.ID, StatusApproved)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second decision is a no-op either way.
	ok, err = st.SetPaymentStatus(ctx, p.ID, StatusRejected)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := st.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	ok, err = st.SetPaymentStatus(ctx, 999, StatusApproved)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemStoreCloneRenewal(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	first := time.Now().Add(7 * 24 * time.Hour)
	require.NoError(t, st.UpsertClone(ctx, 7, "111111:aaa", first))
	second := time.Now().Add(30 * 24 * time.Hour)
	require.NoError(t, st.UpsertClone(ctx, 7, "222222:bbb", second))

	c, err := st.GetClone(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "222222:bbb", c.Credential)
	assert.Equal(t, second, c.Expiry)
	assert.Equal(t, 29, c.DaysLeft(time.Now().Add(time.Hour)))
	assert.Equal(t, 0, c.DaysLeft(second.Add(time.Hour)))
}

func TestMemStoreStats(t *testing.T) {
	ctx := context.Background()
	st := NewMemStore()

	require.NoError(t, st.UpsertUser(ctx, 1, "a", "A"))
	require.NoError(t, st.UpsertUser(ctx, 2, "b", "B"))
	require.NoError(t, st.SetBanned(ctx, 2, true))
	require.NoError(t, st.CreatePayment(ctx, &Payment{UserID: 1, PlanDays: 1, PlanPrice: 2}))
	p := &Payment{UserID: 1, PlanDays: 7, PlanPrice: 12}
	require.NoError(t, st.CreatePayment(ctx, p))
	_, err := st.SetPaymentStatus(ctx, p.ID, StatusApproved)
	require.NoError(t, err)
	require.NoError(t, st.UpsertClone(ctx, 1, "111111:aaa", time.Now().Add(time.Hour)))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 1, stats.Banned)
	assert.Equal(t, 1, stats.PendingPayments)
	assert.Equal(t, 1, stats.ApprovedPayments)
	assert.Equal(t, 1, stats.ActiveClones)
}
