// Package gateway abstracts the messenger platform behind a small
// interface so relay, provisioning and broadcast logic can be exercised
// without a live connection.
package gateway

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrBadCredential is returned when a candidate bot credential fails the
// live platform probe.
var ErrBadCredential = errors.New("gateway: credential rejected by platform")

// MediaKind names the content carried by a relayed message.
type MediaKind string

const (
	KindText      MediaKind = "text"
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindDocument  MediaKind = "document"
	KindVoice     MediaKind = "voice"
	KindAudio     MediaKind = "audio"
	KindVideoNote MediaKind = "video_note"
	KindSticker   MediaKind = "sticker"
	KindAnimation MediaKind = "animation"
)

// Media is platform content detached from its original message: either
// plain text or a file reference with an optional caption. Re-sending by
// file reference keeps the richest stored variant.
type Media struct {
	Kind    MediaKind
	Text    string
	FileID  string
	Caption string
}

// IsText reports whether the media carries no file payload.
func (m Media) IsText() bool { return m.Kind == KindText }

// BotIdentity is the platform-side identity behind a validated credential.
type BotIdentity struct {
	ID       int64
	Username string
}

// Gateway is the outbound platform surface used by the services.
type Gateway interface {
	// SendText delivers text to a chat and returns the new message id.
	// When html is set the text is parsed as HTML.
	SendText(ctx context.Context, chatID int64, text string, html bool) (int64, error)
	// SendMedia re-sends stored media to a chat by file reference.
	SendMedia(ctx context.Context, chatID int64, m Media) (int64, error)
	// SendMediaMarkup sends media with an inline keyboard attached.
	SendMediaMarkup(ctx context.Context, chatID int64, m Media, markup *tele.ReplyMarkup) (int64, error)
	// EditCaption rewrites the caption of an already-sent message and
	// drops its inline keyboard.
	EditCaption(ctx context.Context, chatID, messageID int64, caption string) error
	// ValidateCredential probes the platform with a candidate credential
	// and returns the identity it authenticates, or ErrBadCredential.
	ValidateCredential(ctx context.Context, token string) (*BotIdentity, error)
}

// ContentFromMessage extracts relayable media from an incoming message.
// Photo sizes arrive best-variant-first from the platform, so the stored
// file id always points at the highest resolution. Returns false for
// message types the hub does not relay.
func ContentFromMessage(msg *tele.Message) (Media, bool) {
	switch {
	case msg == nil:
		return Media{}, false
	case msg.Photo != nil:
		return Media{Kind: KindPhoto, FileID: msg.Photo.FileID, Caption: msg.Caption}, true
	case msg.Video != nil:
		return Media{Kind: KindVideo, FileID: msg.Video.FileID, Caption: msg.Caption}, true
	case msg.Document != nil:
		return Media{Kind: KindDocument, FileID: msg.Document.FileID, Caption: msg.Caption}, true
	case msg.Voice != nil:
		return Media{Kind: KindVoice, FileID: msg.Voice.FileID, Caption: msg.Caption}, true
	case msg.Audio != nil:
		return Media{Kind: KindAudio, FileID: msg.Audio.FileID, Caption: msg.Caption}, true
	case msg.VideoNote != nil:
		return Media{Kind: KindVideoNote, FileID: msg.VideoNote.FileID}, true
	case msg.Sticker != nil:
		return Media{Kind: KindSticker, FileID: msg.Sticker.FileID}, true
	case msg.Animation != nil:
		return Media{Kind: KindAnimation, FileID: msg.Animation.FileID, Caption: msg.Caption}, true
	case strings.TrimSpace(msg.Text) != "":
		return Media{Kind: KindText, Text: msg.Text}, true
	default:
		return Media{}, false
	}
}
