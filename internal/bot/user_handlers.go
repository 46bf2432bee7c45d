package bot

import (
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/internal/state"
	"github.com/samrelay/relayhub/internal/storage"
	"github.com/samrelay/relayhub/internal/telegram/callbacks"
	tghelpers "github.com/samrelay/relayhub/internal/telegram/helpers"
	"github.com/samrelay/relayhub/internal/telegram/keyboard"
)

func (b *Bot) handleStart(c tele.Context) error {
	tghelpers.WithHandler(c, "start")
	if b.isOperator(c) {
		return tghelpers.SendMarkup(c, operatorPanelText, b.operatorPanelMarkup())
	}

	ctx := tghelpers.BuildContext(c)
	user, err := b.store.GetUser(ctx, c.Sender().ID)
	if err == nil && user.Banned {
		return tghelpers.SendText(c, "⛔️ You are banned.")
	}
	b.rememberSender(c)

	return tghelpers.SendMarkup(c, userWelcomeText, keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "📩 Send msg to Admin", Unique: cbUserSend},
		{Text: "📚 Paid Batches List", Unique: cbPaidBatches},
		{Text: "🤖 Want's to Clone Bot?", Unique: cbCloneBot},
		{Text: "📋 My Clone Bot", Unique: cbMyClone},
		{Text: "ℹ️ Help", Unique: cbUserHelp},
	}))
}

func (b *Bot) handleCancel(c tele.Context) error {
	tghelpers.WithHandler(c, "cancel")
	if b.isOperator(c) {
		flow := b.opState.Cancel()
		if flow == state.Idle {
			return tghelpers.SendText(c, "Nothing to cancel.")
		}
		return tghelpers.SendText(c, fmt.Sprintf("❌ Cancelled %s.", flow))
	}

	if b.prov.ClearFocus(c.Sender().ID) {
		return tghelpers.SendText(c, "❌ Payment cancelled. Use /start to try again.")
	}
	return tghelpers.SendText(c, "Nothing to cancel.")
}

// rememberSender records the sender's identity on every inbound event.
func (b *Bot) rememberSender(c tele.Context) {
	sender := c.Sender()
	if sender == nil {
		return
	}
	ctx := tghelpers.BuildContext(c)
	_ = b.store.UpsertUser(ctx, sender.ID, sender.Username, sender.FirstName)
}

func (b *Bot) isBanned(c tele.Context) bool {
	sender := c.Sender()
	if sender == nil {
		return false
	}
	ctx := tghelpers.BuildContext(c)
	user, err := b.store.GetUser(ctx, sender.ID)
	return err == nil && user.Banned
}

func (b *Bot) cbUserSendPrompt(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	return tghelpers.SendText(c, userSendPromptText)
}

func (b *Bot) cbPaidBatches(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	ctx := tghelpers.BuildContext(c)
	body, err := b.store.CatalogText(ctx)
	if err != nil {
		return tghelpers.SendText(c, sendFailedText)
	}
	return tghelpers.SendText(c, catalogText(body))
}

func (b *Bot) cbPlanMenu(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	buttons := make([]keyboard.InlineBtn, 0, len(b.prov.Plans()))
	for _, p := range b.prov.Plans() {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   planButtonText(p),
			Unique: cbPlan,
			Data:   fmt.Sprintf("%d|%d", p.Days, p.Price),
		})
	}
	return tghelpers.SendMarkup(c, planMenuText, keyboard.InlineButtons(buttons))
}

func (b *Bot) cbPlanSelected(c tele.Context) error {
	days, price, err := callbacks.PayloadTwoInt(c, "|")
	if err != nil {
		return tghelpers.Answer(c, "Unknown plan", true)
	}
	plan, err := b.prov.PlanFor(days, price)
	if err != nil {
		return tghelpers.Answer(c, "Unknown plan", true)
	}
	_ = tghelpers.Answer(c, "", false)

	b.prov.SelectPlan(c.Sender().ID, plan)

	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "💳 Pay Now", URL: upiLink(plan, b.prov.UPIID())}},
		[]keyboard.InlineBtn{{Text: "❌ Cancel", Unique: cbCancelPayment}},
	)
	return tghelpers.SendMarkup(c, paymentDetailsText(plan, b.prov.UPIID()), markup)
}

func (b *Bot) cbMyClone(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	ctx := tghelpers.BuildContext(c)
	clone, err := b.store.GetClone(ctx, c.Sender().ID)
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, noCloneText)
	}
	if err != nil {
		return tghelpers.SendText(c, sendFailedText)
	}
	return tghelpers.SendText(c, cloneStatusText(clone, time.Now()))
}

func (b *Bot) cbUserHelp(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	return tghelpers.SendText(c, userHelpText)
}

func (b *Bot) cbCancelPayment(c tele.Context) error {
	_ = tghelpers.Answer(c, "❌ Cancelled", false)
	b.prov.ClearFocus(c.Sender().ID)
	return tghelpers.SendText(c, "❌ Payment cancelled. Use /start to try again.")
}
