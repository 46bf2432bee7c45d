package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/storage"
)

const operatorID = int64(1)

func TestForwardToOperatorLinksBothMessages(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	gw := gateway.NewFake()
	svc := NewService(st, gw, operatorID)

	ack, err := svc.ForwardToOperator(ctx, Sender{ID: 42, Username: "alice", DisplayName: "Alice"},
		gateway.Media{Kind: gateway.KindText, Text: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, ack)

	sent := gw.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, operatorID, sent[0].ChatID)
	assert.Contains(t, sent[0].Text, "<code>42</code>")
	assert.Contains(t, sent[0].Text, "Alice")
	assert.Contains(t, sent[0].Text, "@alice")
	assert.True(t, sent[0].HTML)
	assert.Equal(t, "hello", sent[1].Media.Text)

	// Both the header and the content resolve back to the sender.
	for _, id := range []int64{1001, 1002} {
		uid, err := st.ResolveMessage(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(42), uid)
	}
}

func TestForwardToOperatorNoUsername(t *testing.T) {
	gw := gateway.NewFake()
	svc := NewService(storage.NewMemStore(), gw, operatorID)

	_, err := svc.ForwardToOperator(context.Background(), Sender{ID: 5, DisplayName: "Bob"},
		gateway.Media{Kind: gateway.KindText, Text: "hi"})
	require.NoError(t, err)
	assert.Contains(t, gw.SentMessages()[0].Text, "@None")
}

func TestForwardToOperatorHeaderFailureLeavesNoLinks(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	gw := gateway.NewFake()
	gw.FailFor(operatorID, errors.New("chat unreachable"))
	svc := NewService(st, gw, operatorID)

	_, err := svc.ForwardToOperator(ctx, Sender{ID: 42, DisplayName: "Alice"},
		gateway.Media{Kind: gateway.KindText, Text: "hello"})
	require.Error(t, err)
	assert.Empty(t, gw.SentMessages())
}

func TestOperatorReplyRoutesBack(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	gw := gateway.NewFake()
	svc := NewService(st, gw, operatorID)

	_, err := svc.ForwardToOperator(ctx, Sender{ID: 42, Username: "alice", DisplayName: "Alice"},
		gateway.Media{Kind: gateway.KindText, Text: "hello"})
	require.NoError(t, err)

	// Operator replies to the content message (second forwarded id).
	target, err := svc.ForwardToUser(ctx, 1002, gateway.Media{Kind: gateway.KindText, Text: "hi back"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), target)

	last := gw.LastSent()
	assert.Equal(t, int64(42), last.ChatID)
	assert.Equal(t, "hi back", last.Media.Text)
}

func TestReplyToUntrackedMessage(t *testing.T) {
	svc := NewService(storage.NewMemStore(), gateway.NewFake(), operatorID)

	_, err := svc.ForwardToUser(context.Background(), 555, gateway.Media{Kind: gateway.KindText, Text: "x"})
	assert.ErrorIs(t, err, ErrNoMapping)
}

func TestReplyDeliveryFailureNamesTarget(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	gw := gateway.NewFake()
	svc := NewService(st, gw, operatorID)

	_, err := svc.ForwardToOperator(ctx, Sender{ID: 42, DisplayName: "Alice"},
		gateway.Media{Kind: gateway.KindText, Text: "hello"})
	require.NoError(t, err)

	gw.FailFor(42, errors.New("blocked"))
	target, err := svc.ForwardToUser(ctx, 1001, gateway.Media{Kind: gateway.KindText, Text: "hi"})
	require.Error(t, err)
	assert.Equal(t, int64(42), target)
}

func TestMappingsSurviveUnrelatedForwards(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemStore()
	gw := gateway.NewFake()
	svc := NewService(st, gw, operatorID)

	_, err := svc.ForwardToOperator(ctx, Sender{ID: 42, DisplayName: "Alice"},
		gateway.Media{Kind: gateway.KindText, Text: "first"})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := svc.ForwardToOperator(ctx, Sender{ID: int64(100 + i), DisplayName: "Other"},
			gateway.Media{Kind: gateway.KindText, Text: "noise"})
		require.NoError(t, err)
	}

	uid, err := svc.ResolveReply(ctx, 1002)
	require.NoError(t, err)
	assert.Equal(t, int64(42), uid)
}
