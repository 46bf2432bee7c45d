package bot

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/provision"
	"github.com/samrelay/relayhub/internal/relay"
	tghelpers "github.com/samrelay/relayhub/internal/telegram/helpers"
	"github.com/samrelay/relayhub/internal/telegram/keyboard"
)

func gatewayText(s string) gateway.Media {
	return gateway.Media{Kind: gateway.KindText, Text: s}
}

func buyerFrom(sender *tele.User) provision.Buyer {
	return provision.Buyer{
		ID:          sender.ID,
		Username:    sender.Username,
		DisplayName: sender.FirstName,
	}
}

// approvalMarkup attaches Approve/Reject controls addressed by payment
// and user id to the operator's approval prompt.
func (b *Bot) approvalMarkup(paymentID, userID int64) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "✅ Approve", Unique: cbApprove, Data: fmt.Sprintf("%d|%d", paymentID, userID)},
		{Text: "❌ Reject", Unique: cbReject, Data: fmt.Sprintf("%d|%d", paymentID, userID)},
	})
}

// handleText routes inbound text. Operator text is claimed in priority
// order: open conversation flow, credential shape, reply-to relay, then
// the panel hint. User text is relayed to the operator.
func (b *Bot) handleText(c tele.Context) error {
	text := c.Text()
	if b.isOperator(c) {
		if consumed, err := b.handleOperatorFlowText(c, text); consumed {
			return err
		}
		if consumed, err := b.handleCredentialText(c, text); consumed {
			return err
		}
		if consumed, err := b.handleOperatorReply(c); consumed {
			return err
		}
		return tghelpers.SendMarkup(c, operatorPanelText, b.operatorPanelMarkup())
	}
	return b.relayFromUser(c)
}

// handleMedia routes inbound media. Operator media only matters as a
// reply to a forwarded message. A user photo is first offered to the
// payment flow; everything else is relayed.
func (b *Bot) handleMedia(c tele.Context) error {
	if b.isOperator(c) {
		if consumed, err := b.handleOperatorReply(c); consumed {
			return err
		}
		return nil
	}

	if b.isBanned(c) {
		return nil
	}
	b.rememberSender(c)

	if msg := c.Message(); msg != nil && msg.Photo != nil {
		if consumed, err := b.submitScreenshot(c, msg.Photo.FileID); consumed {
			return err
		}
	}
	return b.relayFromUser(c)
}

// handleOperatorReply forwards operator content to the user behind the
// replied-to message. Reports whether the event was a tracked reply.
func (b *Bot) handleOperatorReply(c tele.Context) (bool, error) {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil {
		return false, nil
	}
	media, ok := gateway.ContentFromMessage(msg)
	if !ok {
		return false, nil
	}
	ctx := tghelpers.WithHandler(c, "relay.reply")

	target, err := b.relay.ForwardToUser(ctx, int64(msg.ReplyTo.ID), media)
	if errors.Is(err, relay.ErrNoMapping) {
		return false, nil
	}
	if err != nil {
		return true, tghelpers.SendText(c, fmt.Sprintf("❌ Failed: %v", err))
	}
	return true, tghelpers.SendText(c, fmt.Sprintf("✅ Reply sent to user %d!", target))
}

// submitScreenshot offers a photo to the payment flow. Reports whether
// the photo was consumed as a payment screenshot.
func (b *Bot) submitScreenshot(c tele.Context, fileID string) (bool, error) {
	sender := c.Sender()
	if _, ok := b.prov.SelectedPlan(sender.ID); !ok {
		return false, nil
	}
	ctx := tghelpers.WithHandler(c, "pay.submit")

	p, err := b.prov.Submit(ctx, buyerFrom(sender), fileID, b.approvalMarkup)
	if err != nil {
		return true, tghelpers.SendText(c, sendFailedText)
	}
	return true, tghelpers.SendText(c, paymentReceivedText(p.ID))
}

// relayFromUser forwards a non-operator event to the operator chat.
func (b *Bot) relayFromUser(c tele.Context) error {
	if b.isBanned(c) {
		return nil
	}
	b.rememberSender(c)

	media, ok := gateway.ContentFromMessage(c.Message())
	if !ok {
		// Unsupported payloads are dropped without error.
		return nil
	}
	ctx := tghelpers.WithHandler(c, "relay.forward")

	sender := c.Sender()
	ack, err := b.relay.ForwardToOperator(ctx, relay.Sender{
		ID:          sender.ID,
		Username:    sender.Username,
		DisplayName: sender.FirstName,
	}, media)
	if err != nil {
		return tghelpers.ReplyText(c, sendFailedText)
	}
	return tghelpers.ReplyText(c, ack)
}
