package gateway

import (
	"context"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Sent records one outbound delivery made through a Fake.
type Sent struct {
	ChatID int64
	Text   string
	HTML   bool
	Media  Media
	Markup *tele.ReplyMarkup
}

// CaptionEdit records one caption rewrite made through a Fake.
type CaptionEdit struct {
	ChatID    int64
	MessageID int64
	Caption   string
}

// Fake is an in-memory Gateway for tests. Message ids are assigned
// sequentially; FailFor makes deliveries to specific chats fail.
type Fake struct {
	mu      sync.Mutex
	nextID  int64
	sent    []Sent
	edits   []CaptionEdit
	failFor map[int64]error

	// Identity returned by ValidateCredential; a nil Identity makes the
	// probe fail with ErrBadCredential.
	Identity *BotIdentity
}

var _ Gateway = (*Fake)(nil)

// NewFake returns a Fake whose first assigned message id is 1000.
func NewFake() *Fake {
	return &Fake{nextID: 1000, failFor: make(map[int64]error)}
}

// FailFor makes every delivery to chatID return err.
func (f *Fake) FailFor(chatID int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[chatID] = err
}

// SentMessages returns a copy of all recorded deliveries.
func (f *Fake) SentMessages() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sent, len(f.sent))
	copy(out, f.sent)
	return out
}

// LastSent returns the most recent delivery, or a zero Sent.
func (f *Fake) LastSent() Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return Sent{}
	}
	return f.sent[len(f.sent)-1]
}

// CaptionEdits returns a copy of all recorded caption rewrites.
func (f *Fake) CaptionEdits() []CaptionEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]CaptionEdit, len(f.edits))
	copy(out, f.edits)
	return out
}

func (f *Fake) record(s Sent) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[s.ChatID]; ok {
		return 0, err
	}
	f.nextID++
	f.sent = append(f.sent, s)
	return f.nextID, nil
}

func (f *Fake) SendText(_ context.Context, chatID int64, text string, html bool) (int64, error) {
	return f.record(Sent{ChatID: chatID, Text: text, HTML: html})
}

func (f *Fake) SendMedia(_ context.Context, chatID int64, m Media) (int64, error) {
	return f.record(Sent{ChatID: chatID, Media: m})
}

func (f *Fake) SendMediaMarkup(_ context.Context, chatID int64, m Media, markup *tele.ReplyMarkup) (int64, error) {
	return f.record(Sent{ChatID: chatID, Media: m, Markup: markup})
}

func (f *Fake) EditCaption(_ context.Context, chatID, messageID int64, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[chatID]; ok {
		return err
	}
	f.edits = append(f.edits, CaptionEdit{ChatID: chatID, MessageID: messageID, Caption: caption})
	return nil
}

func (f *Fake) ValidateCredential(_ context.Context, token string) (*BotIdentity, error) {
	if f.Identity == nil {
		return nil, ErrBadCredential
	}
	id := *f.Identity
	return &id, nil
}
