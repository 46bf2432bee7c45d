package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/config"
	"github.com/samrelay/relayhub/internal/broadcast"
	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/provision"
	"github.com/samrelay/relayhub/internal/relay"
	"github.com/samrelay/relayhub/internal/state"
	"github.com/samrelay/relayhub/internal/storage"
)

const opID = int64(1)

// stubContext drives handlers directly without a live bot. Only the
// methods the dispatch paths touch are implemented; anything else
// panics through the embedded nil interface.
type stubContext struct {
	tele.Context
	sender  *tele.User
	msg     *tele.Message
	values  map[string]interface{}
	sent    []string
	replies []string
}

func newStubContext(sender *tele.User, msg *tele.Message) *stubContext {
	return &stubContext{sender: sender, msg: msg, values: map[string]interface{}{}}
}

func (c *stubContext) Sender() *tele.User       { return c.sender }
func (c *stubContext) Message() *tele.Message   { return c.msg }
func (c *stubContext) Callback() *tele.Callback { return nil }

func (c *stubContext) Chat() *tele.Chat {
	if c.msg != nil {
		return c.msg.Chat
	}
	return nil
}

func (c *stubContext) Update() tele.Update { return tele.Update{ID: 1, Message: c.msg} }

func (c *stubContext) Text() string {
	if c.msg != nil {
		return c.msg.Text
	}
	return ""
}

func (c *stubContext) Get(key string) interface{}    { return c.values[key] }
func (c *stubContext) Set(key string, v interface{}) { c.values[key] = v }

func (c *stubContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	return nil
}

func (c *stubContext) Reply(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		c.replies = append(c.replies, s)
	}
	return nil
}

func newTestBot(t *testing.T) (*Bot, *storage.MemStore, *gateway.Fake) {
	t.Helper()
	st := storage.NewMemStore()
	gw := gateway.NewFake()
	gw.Identity = &gateway.BotIdentity{ID: 99, Username: "clone_bot"}

	cfg := &config.Config{}
	cfg.Telegram.OperatorID = opID
	cfg.Payments = config.PaymentsConfig{UPIID: "pay@upi", Plans: config.DefaultPlans}

	relaySvc := relay.NewService(st, gw, opID)
	provSvc := provision.NewService(st, gw, opID, cfg.Payments)
	castSvc := broadcast.NewService(st, gw, 2)
	return New(cfg, st, gw, relaySvc, provSvc, castSvc), st, gw
}

func textMsg(from *tele.User, text string) *tele.Message {
	return &tele.Message{ID: 7, Sender: from, Chat: &tele.Chat{ID: from.ID}, Text: text}
}

func TestBannedUserEventsLeaveNoTrace(t *testing.T) {
	hub, st, gw := newTestBot(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertUser(ctx, 42, "mallory", "Mallory"))
	require.NoError(t, st.SetBanned(ctx, 42, true))
	banned := &tele.User{ID: 42, Username: "mallory", FirstName: "Mallory"}

	c := newStubContext(banned, textMsg(banned, "hello"))
	require.NoError(t, hub.handleText(c))

	assert.Empty(t, gw.SentMessages())
	assert.Empty(t, c.replies)
	_, err := st.ResolveMessage(ctx, 1001)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A screenshot from a banned user drops before the payment flow
	// even with a plan selected.
	hub.prov.SelectPlan(42, config.Plan{Days: 7, Price: 12})
	photo := textMsg(banned, "")
	photo.Photo = &tele.Photo{File: tele.File{FileID: "ph1"}}
	c2 := newStubContext(banned, photo)
	require.NoError(t, hub.handleMedia(c2))

	assert.Empty(t, gw.SentMessages())
	payments, err := st.ListPayments(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestActiveUserTextRelaysAndAcks(t *testing.T) {
	hub, st, gw := newTestBot(t)
	user := &tele.User{ID: 43, Username: "alice", FirstName: "Alice"}

	c := newStubContext(user, textMsg(user, "hello"))
	require.NoError(t, hub.handleText(c))

	msgs := gw.SentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, opID, msgs[0].ChatID)
	assert.Contains(t, msgs[0].Text, "43")
	assert.Equal(t, "hello", msgs[1].Media.Text)

	uid, err := st.ResolveMessage(context.Background(), 1002)
	require.NoError(t, err)
	assert.Equal(t, int64(43), uid)
	assert.Len(t, c.replies, 1)
}

func TestOpenFlowClaimsTokenShapedText(t *testing.T) {
	hub, st, gw := newTestBot(t)
	require.NoError(t, st.UpsertUser(context.Background(), 43, "alice", "Alice"))
	hub.opState.Begin(state.AwaitingBroadcast)

	op := &tele.User{ID: opID}
	c := newStubContext(op, textMsg(op, sampleToken))
	require.NoError(t, hub.handleText(c))

	// The broadcast flow consumed the text; credential intake never ran.
	assert.Equal(t, state.Idle, hub.opState.Current())
	last := gw.LastSent()
	assert.Equal(t, int64(43), last.ChatID)
	assert.Equal(t, sampleToken, last.Media.Text)
	require.NotEmpty(t, c.sent)
	assert.Contains(t, c.sent[len(c.sent)-1], "1 sent, 0 failed")
}

func TestReplyTokenToSlotlessUserIsRejected(t *testing.T) {
	hub, _, _ := newTestBot(t)
	ctx := context.Background()

	hub.prov.SelectPlan(55, config.Plan{Days: 7, Price: 12})
	p, err := hub.prov.Submit(ctx, provision.Buyer{ID: 55, Username: "bob", DisplayName: "Bob"},
		"ph1", func(int64, int64) *tele.ReplyMarkup { return nil })
	require.NoError(t, err)
	require.NoError(t, hub.prov.Decide(ctx, p.ID, true, 500, "caption"))

	// User 66 holds no slot; their forwarded message lands as 1003/1004.
	_, err = hub.relay.ForwardToOperator(ctx, relay.Sender{ID: 66, Username: "carol", DisplayName: "Carol"},
		gatewayText("hey"))
	require.NoError(t, err)

	op := &tele.User{ID: opID}
	msg := textMsg(op, sampleToken)
	msg.ReplyTo = &tele.Message{ID: 1003}
	c := newStubContext(op, msg)
	require.NoError(t, hub.handleText(c))

	require.NotEmpty(t, c.sent)
	assert.Contains(t, c.sent[len(c.sent)-1], "No approval is waiting for user 66")
	assert.True(t, hub.prov.HasSlot(55))
}
