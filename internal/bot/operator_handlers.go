package bot

import (
	"errors"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/internal/provision"
	"github.com/samrelay/relayhub/internal/state"
	"github.com/samrelay/relayhub/internal/telegram/callbacks"
	tghelpers "github.com/samrelay/relayhub/internal/telegram/helpers"
	"github.com/samrelay/relayhub/internal/telegram/keyboard"
)

func (b *Bot) operatorPanelMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "📊 Stats", Unique: cbOwnerStats},
			{Text: "💳 Payments", Unique: cbOwnerPayments},
		},
		[]keyboard.InlineBtn{
			{Text: "👥 Active Users", Unique: cbOwnerActive},
			{Text: "🚫 Banned", Unique: cbOwnerBanned},
		},
		[]keyboard.InlineBtn{
			{Text: "🚫 Ban", Unique: cbOwnerBan},
			{Text: "✅ Unban", Unique: cbOwnerUnban},
		},
		[]keyboard.InlineBtn{
			{Text: "📢 Broadcast", Unique: cbOwnerBroadcast},
			{Text: "📚 Edit Batches", Unique: cbEditBatches},
		},
	)
}

func (b *Bot) cbOwnerStats(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	ctx := tghelpers.WithHandler(c, "owner.stats")
	st, err := b.store.Stats(ctx)
	if err != nil {
		return tghelpers.SendText(c, "❌ Failed to load stats.")
	}
	return tghelpers.SendText(c, statsText(st))
}

// userListLimit bounds drill-down keyboards; Telegram rejects oversized markups.
const userListLimit = 25

func (b *Bot) cbOwnerActive(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	ctx := tghelpers.WithHandler(c, "owner.active")
	users, err := b.store.ListUsers(ctx)
	if err != nil {
		return tghelpers.SendText(c, "❌ Failed to load users.")
	}
	if len(users) == 0 {
		return tghelpers.SendText(c, "👥 No active users yet.")
	}

	buttons := make([]keyboard.InlineBtn, 0, userListLimit)
	for i, u := range users {
		if i == userListLimit {
			break
		}
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s (%d)", u.DisplayName, u.ID),
			Unique: cbUserInfo,
			Data:   strconv.FormatInt(u.ID, 10),
		})
	}
	text := fmt.Sprintf("👥 Active users: %d\nTap a user for details.", len(users))
	return tghelpers.SendMarkup(c, text, keyboard.InlineButtons(buttons))
}

func (b *Bot) cbOwnerBanned(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	ctx := tghelpers.WithHandler(c, "owner.banned")
	users, err := b.store.ListBanned(ctx)
	if err != nil {
		return tghelpers.SendText(c, "❌ Failed to load banned users.")
	}
	if len(users) == 0 {
		return tghelpers.SendText(c, "🚫 No banned users.")
	}

	buttons := make([]keyboard.InlineBtn, 0, userListLimit)
	for i, u := range users {
		if i == userListLimit {
			break
		}
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("✅ Unban %s (%d)", u.DisplayName, u.ID),
			Unique: cbUnbanUser,
			Data:   strconv.FormatInt(u.ID, 10),
		})
	}
	return tghelpers.SendMarkup(c, fmt.Sprintf("🚫 Banned users: %d", len(users)), keyboard.InlineButtons(buttons))
}

func (b *Bot) cbUserInfo(c tele.Context) error {
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.Answer(c, "Bad user id", true)
	}
	_ = tghelpers.Answer(c, "", false)
	ctx := tghelpers.WithHandler(c, "owner.userinfo")

	u, err := b.store.GetUser(ctx, userID)
	if err != nil {
		return tghelpers.SendText(c, "❌ User not found.")
	}

	text := fmt.Sprintf(
		"👤 %s\n🆔 <code>%d</code>\n📱 @%s\n🚫 Banned: %v\n📅 First seen: %s",
		u.DisplayName, u.ID, u.UsernameOr("None"), u.Banned, u.CreatedAt.Format("2006-01-02"))
	if clone, err := b.store.GetClone(ctx, userID); err == nil {
		text += fmt.Sprintf("\n🤖 Clone expires: %s", clone.Expiry.Format("2006-01-02"))
	}

	action := keyboard.InlineBtn{Text: "🚫 Ban", Unique: cbBanUser, Data: strconv.FormatInt(userID, 10)}
	if u.Banned {
		action = keyboard.InlineBtn{Text: "✅ Unban", Unique: cbUnbanUser, Data: strconv.FormatInt(userID, 10)}
	}
	return tghelpers.SendHTML(c, text, keyboard.InlineButtons([]keyboard.InlineBtn{action}))
}

func (b *Bot) cbBanByButton(c tele.Context) error {
	return b.setBannedByButton(c, true)
}

func (b *Bot) cbUnbanByButton(c tele.Context) error {
	return b.setBannedByButton(c, false)
}

func (b *Bot) setBannedByButton(c tele.Context, banned bool) error {
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.Answer(c, "Bad user id", true)
	}
	ctx := tghelpers.WithHandler(c, "owner.ban_button")
	if err := b.store.SetBanned(ctx, userID, banned); err != nil {
		return tghelpers.Answer(c, "❌ Failed", true)
	}
	if banned {
		_ = tghelpers.Answer(c, "🚫 Banned", false)
		return tghelpers.SendText(c, fmt.Sprintf("✅ User %d banned!", userID))
	}
	_ = tghelpers.Answer(c, "✅ Unbanned", false)
	return tghelpers.SendText(c, fmt.Sprintf("✅ User %d unbanned!", userID))
}

// beginFlow enters an operator flow and reports whatever it displaced.
func (b *Bot) beginFlow(c tele.Context, flow state.Flow, prompt string) error {
	_ = tghelpers.Answer(c, "", false)
	if prev := b.opState.Begin(flow); prev != state.Idle {
		_ = tghelpers.SendText(c, fmt.Sprintf("⚠️ Cancelled pending %s.", prev))
	}
	return tghelpers.SendMarkup(c, prompt+"\n\nUse /cancel to abort.",
		keyboard.SingleCancelMarkup(cbOwnerCancel))
}

func (b *Bot) cbOwnerCancel(c tele.Context) error {
	flow := b.opState.Cancel()
	if flow == state.Idle {
		return tghelpers.Answer(c, "Nothing to cancel.", false)
	}
	_ = tghelpers.Answer(c, "", false)
	return tghelpers.SendText(c, fmt.Sprintf("❌ Cancelled %s.", flow))
}

func (b *Bot) cbBeginBan(c tele.Context) error {
	return b.beginFlow(c, state.AwaitingBanID, "🚫 Send the user ID to ban:")
}

func (b *Bot) cbBeginUnban(c tele.Context) error {
	return b.beginFlow(c, state.AwaitingUnbanID, "✅ Send the user ID to unban:")
}

func (b *Bot) cbBeginBroadcast(c tele.Context) error {
	return b.beginFlow(c, state.AwaitingBroadcast, "📢 Send the message to broadcast to all users:")
}

func (b *Bot) cbBeginEditCatalog(c tele.Context) error {
	return b.beginFlow(c, state.AwaitingCatalogText, "📚 Send the new paid batches text:")
}

func (b *Bot) cbOwnerPayments(c tele.Context) error {
	_ = tghelpers.Answer(c, "", false)
	ctx := tghelpers.WithHandler(c, "owner.payments")
	payments, err := b.store.ListPayments(ctx, 10)
	if err != nil {
		return tghelpers.SendText(c, "❌ Failed to load payments.")
	}
	return tghelpers.SendText(c, paymentListText(payments))
}

func (b *Bot) cbDecide(approve bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		paymentID, _, err := callbacks.PayloadTwoInt64(c, "|")
		if err != nil {
			return tghelpers.Answer(c, "Bad payment reference", true)
		}
		ctx := tghelpers.WithHandler(c, "owner.decide")

		var promptID int64
		var caption string
		if msg := c.Message(); msg != nil {
			promptID = int64(msg.ID)
			caption = msg.Caption
		}

		err = b.prov.Decide(ctx, paymentID, approve, promptID, caption)
		if errors.Is(err, provision.ErrStateConflict) {
			return tghelpers.Answer(c, "Already decided, nothing to do.", true)
		}
		if err != nil {
			return tghelpers.Answer(c, "❌ Failed", true)
		}
		if approve {
			return tghelpers.Answer(c, "✅ Approved!", true)
		}
		return tghelpers.Answer(c, "❌ Rejected!", true)
	}
}

// handleOperatorFlowText consumes operator text claimed by an open flow.
// Reports whether the text was consumed.
func (b *Bot) handleOperatorFlowText(c tele.Context, text string) (bool, error) {
	flow := b.opState.Current()
	switch flow {
	case state.AwaitingBanID, state.AwaitingUnbanID:
		userID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			// Bad id keeps the flow open; the operator is reprompted.
			return true, tghelpers.SendText(c, "❌ Invalid ID:")
		}
		ctx := tghelpers.WithHandler(c, "owner.ban_id")
		banned := flow == state.AwaitingBanID
		if err := b.store.SetBanned(ctx, userID, banned); err != nil {
			return true, tghelpers.SendText(c, "❌ Failed, try again:")
		}
		b.opState.Finish(flow)
		if banned {
			return true, tghelpers.SendText(c, fmt.Sprintf("✅ User %d banned!", userID))
		}
		return true, tghelpers.SendText(c, fmt.Sprintf("✅ User %d unbanned!", userID))

	case state.AwaitingCatalogText:
		ctx := tghelpers.WithHandler(c, "owner.edit_catalog")
		if err := b.store.SetCatalogText(ctx, text); err != nil {
			return true, tghelpers.SendText(c, "❌ Failed to save, try again:")
		}
		b.opState.Finish(flow)
		return true, tghelpers.SendText(c, "✅ Paid batches text updated!")

	case state.AwaitingBroadcast:
		// Finish before the fan-out: the flow must not claim the next
		// operator message while sends are in flight, and the text must
		// not be broadcast twice if delivery partially fails.
		b.opState.Finish(flow)
		ctx := tghelpers.WithHandler(c, "owner.broadcast")
		res, err := b.cast.Send(ctx, gatewayText(text))
		if err != nil {
			return true, tghelpers.SendText(c, "❌ Broadcast failed.")
		}
		return true, tghelpers.SendText(c, fmt.Sprintf("📢 Broadcast done: %d sent, %d failed.", res.Sent, res.Failed))
	}
	return false, nil
}

// handleCredentialText consumes operator text shaped like a bot token.
// Reports whether the text was consumed.
func (b *Bot) handleCredentialText(c tele.Context, text string) (bool, error) {
	token, target := splitCredential(text)
	if token == "" {
		return false, nil
	}
	ctx := tghelpers.WithHandler(c, "owner.credential")

	// A reply to a forwarded message addresses that user's slot. The
	// address binds even when that user holds no slot: a token must
	// never land on a user the operator did not name.
	if target == 0 && c.Message() != nil && c.Message().ReplyTo != nil {
		if uid, err := b.relay.ResolveReply(ctx, int64(c.Message().ReplyTo.ID)); err == nil {
			target = uid
		}
	}

	issued, err := b.prov.RegisterCredential(ctx, token, target)
	switch {
	case errors.Is(err, provision.ErrNoOpenSlot):
		return true, tghelpers.SendText(c, "Nothing to do: no approval is waiting for a token.")
	case errors.Is(err, provision.ErrAmbiguousCredential):
		msg := "⚠️ Several approvals await a token. Reply to the user's message, or send \"<user_id> <token>\".\nOpen:"
		for _, slot := range b.prov.OpenSlots() {
			msg += fmt.Sprintf("\n• user %d (%d days)", slot.UserID, slot.PlanDays)
		}
		return true, tghelpers.SendText(c, msg)
	case errors.Is(err, provision.ErrNoSlotForUser):
		return true, tghelpers.SendText(c, fmt.Sprintf("❌ No approval is waiting for user %d.", target))
	case err != nil:
		return true, tghelpers.SendText(c, fmt.Sprintf("❌ Invalid bot token: %v", err))
	}
	return true, tghelpers.SendText(c, cloneIssuedText(issued.BotUsername, issued.UserID, issued.PlanDays))
}

// splitCredential recognizes "<token>" and "<user_id> <token>" operator
// input. Returns an empty token when the text has no credential shape.
func splitCredential(text string) (token string, target int64) {
	if provision.LooksLikeCredential(text) {
		return text, 0
	}
	var id int64
	var rest string
	if n, err := fmt.Sscanf(text, "%d %s", &id, &rest); err == nil && n == 2 && provision.LooksLikeCredential(rest) {
		return rest, id
	}
	return "", 0
}
