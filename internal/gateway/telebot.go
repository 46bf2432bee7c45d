package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/internal/logger"
)

// telegramGateway implements Gateway on a live telebot instance.
type telegramGateway struct {
	bot         *tele.Bot
	probeClient *http.Client
}

// NewTelegram wraps a connected bot as a Gateway. The probe client is
// used only for credential validation and carries its own timeout so a
// stalled probe cannot hold a handler.
func NewTelegram(bot *tele.Bot) Gateway {
	return &telegramGateway{
		bot:         bot,
		probeClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *telegramGateway) SendText(ctx context.Context, chatID int64, text string, html bool) (int64, error) {
	opts := &tele.SendOptions{}
	if html {
		opts.ParseMode = tele.ModeHTML
	}
	msg, err := g.bot.Send(tele.ChatID(chatID), text, opts)
	if err != nil {
		return 0, fmt.Errorf("send text to %d: %w", chatID, err)
	}
	return int64(msg.ID), nil
}

func (g *telegramGateway) SendMedia(ctx context.Context, chatID int64, m Media) (int64, error) {
	return g.SendMediaMarkup(ctx, chatID, m, nil)
}

func (g *telegramGateway) SendMediaMarkup(ctx context.Context, chatID int64, m Media, markup *tele.ReplyMarkup) (int64, error) {
	opts := &tele.SendOptions{ReplyMarkup: markup}
	var what interface{}
	if m.IsText() {
		what = m.Text
	} else {
		what = sendableFor(m)
		if what == nil {
			return 0, fmt.Errorf("send media to %d: unsupported kind %q", chatID, m.Kind)
		}
	}
	msg, err := g.bot.Send(tele.ChatID(chatID), what, opts)
	if err != nil {
		return 0, fmt.Errorf("send %s to %d: %w", m.Kind, chatID, err)
	}
	return int64(msg.ID), nil
}

func (g *telegramGateway) EditCaption(ctx context.Context, chatID, messageID int64, caption string) error {
	ref := tele.StoredMessage{
		MessageID: strconv.FormatInt(messageID, 10),
		ChatID:    chatID,
	}
	if _, err := g.bot.EditCaption(ref, caption); err != nil {
		return fmt.Errorf("edit caption of %d in %d: %w", messageID, chatID, err)
	}
	return nil
}

func (g *telegramGateway) ValidateCredential(ctx context.Context, token string) (*BotIdentity, error) {
	// NewBot performs a live getMe with the candidate credential.
	probe, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: g.probeClient,
	})
	if err != nil {
		logger.TG.Warn("credential probe failed",
			slog.String("event", "tg.credential.probe"),
			slog.String("err", err.Error()),
		)
		return nil, ErrBadCredential
	}
	return &BotIdentity{ID: probe.Me.ID, Username: probe.Me.Username}, nil
}

func sendableFor(m Media) interface{} {
	file := tele.File{FileID: m.FileID}
	switch m.Kind {
	case KindPhoto:
		return &tele.Photo{File: file, Caption: m.Caption}
	case KindVideo:
		return &tele.Video{File: file, Caption: m.Caption}
	case KindDocument:
		return &tele.Document{File: file, Caption: m.Caption}
	case KindVoice:
		return &tele.Voice{File: file, Caption: m.Caption}
	case KindAudio:
		return &tele.Audio{File: file, Caption: m.Caption}
	case KindVideoNote:
		return &tele.VideoNote{File: file}
	case KindSticker:
		return &tele.Sticker{File: file}
	case KindAnimation:
		return &tele.Animation{File: file, Caption: m.Caption}
	default:
		return nil
	}
}
