package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/storage"
)

func TestSendTalliesFailuresIndependently(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	for _, id := range []int64{10, 20, 30} {
		require.NoError(t, st.UpsertUser(ctx, id, "", "U"))
	}
	gw := gateway.NewFake()
	gw.FailFor(20, errors.New("blocked"))

	res, err := NewService(st, gw, 2).Send(ctx, gateway.Media{Kind: gateway.KindText, Text: "announce"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 1, res.Failed)

	delivered := map[int64]bool{}
	for _, s := range gw.SentMessages() {
		delivered[s.ChatID] = true
		assert.Equal(t, "announce", s.Media.Text)
	}
	assert.True(t, delivered[10])
	assert.True(t, delivered[30])
	assert.False(t, delivered[20])
}

func TestSendSkipsBannedUsers(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	require.NoError(t, st.UpsertUser(ctx, 10, "", "U"))
	require.NoError(t, st.UpsertUser(ctx, 20, "", "V"))
	require.NoError(t, st.SetBanned(ctx, 20, true))
	gw := gateway.NewFake()

	res, err := NewService(st, gw, 4).Send(ctx, gateway.Media{Kind: gateway.KindText, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 0, res.Failed)
	require.Len(t, gw.SentMessages(), 1)
	assert.Equal(t, int64(10), gw.SentMessages()[0].ChatID)
}

func TestSendEmptyUserBase(t *testing.T) {
	res, err := NewService(storage.NewMemStore(), gateway.NewFake(), 4).
		Send(context.Background(), gateway.Media{Kind: gateway.KindText, Text: "hi"})
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.Zero(t, res.Failed)
}
