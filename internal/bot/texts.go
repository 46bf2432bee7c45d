package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/samrelay/relayhub/config"
	"github.com/samrelay/relayhub/internal/storage"
)

const userWelcomeText = "Hello Namaste !!! 🙏\n\n" +
	"You can send any Paid Batch Related Queries to\n\n" +
	"Just Send msg ✍️"

const userSendPromptText = "📝 Send your message now:\n\n" +
	"You can send:\n" +
	"• Text messages\n" +
	"• Photos\n" +
	"• Videos\n" +
	"• Documents\n" +
	"• Voice messages"

const userHelpText = "ℹ️ Help\n" +
	"━━━━━━━━━━━━━━━━\n\n" +
	"📌 How to use:\n\n" +
	"1️⃣ Send msg to Admin\n" +
	"   Send any message to admin\n\n" +
	"2️⃣ Paid Batches List\n" +
	"   View available batches\n\n" +
	"3️⃣ Clone Bot\n" +
	"   - Choose plan\n" +
	"   - Pay via UPI\n" +
	"   - Send screenshot\n" +
	"   - Get approved\n" +
	"   - Send bot token\n" +
	"   - Bot ready!\n\n" +
	"4️⃣ My Clone Bot\n" +
	"   Check your bot status\n\n" +
	"Questions? Message admin!"

const noCloneText = "🤖 You don't have an active clone bot.\n\n" +
	"Purchase a plan to get your bot!"

const planMenuText = "🤖 Clone Bot Subscription Plans\n" +
	"━━━━━━━━━━━━━━━━\n\n" +
	"Choose a plan:"

const sendFailedText = "❌ Failed to send message."

const operatorPanelText = "👑 Admin Panel\n" +
	"━━━━━━━━━━━━━━━━\n\n" +
	"Choose an action:"

func planButtonText(p config.Plan) string {
	return fmt.Sprintf("%d Day%s - ₹%d", p.Days, pluralS(p.Days), p.Price)
}

func paymentDetailsText(p config.Plan, upiID string) string {
	note := fmt.Sprintf("%ddays", p.Days)
	return fmt.Sprintf(
		"💳 Payment Details\n"+
			"━━━━━━━━━━━━━━━━\n"+
			"📦 Plan: %d Day%s\n"+
			"💰 Amount: ₹%d\n"+
			"🔗 UPI ID: %s\n"+
			"📝 Note: %s\n\n"+
			"📋 Instructions:\n"+
			"1. Click \"Pay Now\" button\n"+
			"2. Complete payment in UPI app\n"+
			"3. Take screenshot\n"+
			"4. Send screenshot here\n\n"+
			"⚠️ Important: Only send payment screenshot!",
		p.Days, pluralS(p.Days), p.Price, upiID, note,
	)
}

func upiLink(p config.Plan, upiID string) string {
	return fmt.Sprintf("upi://pay?pa=%s&am=%d&cu=INR&tn=%ddays", upiID, p.Price, p.Days)
}

func paymentReceivedText(paymentID int64) string {
	return fmt.Sprintf(
		"✅ Payment screenshot received!\n\n"+
			"🔍 Under review\n"+
			"⏳ Wait for approval\n\n"+
			"Payment ID: #%d", paymentID)
}

func cloneStatusText(c *storage.Clone, now time.Time) string {
	return fmt.Sprintf(
		"🤖 Your Clone Bot\n"+
			"━━━━━━━━━━━━━━━━\n"+
			"✅ Status: Active\n"+
			"📅 Days Left: %d\n"+
			"⏰ Expires: %s\n\n"+
			"Features:\n"+
			"✅ Receive user messages\n"+
			"✅ Reply to users\n"+
			"✅ All message formats\n\n"+
			"Your bot is running!",
		c.DaysLeft(now), c.Expiry.Format("2006-01-02"))
}

func catalogText(body string) string {
	return "📚 Paid Batches List\n━━━━━━━━━━━━━━━━\n\n" + body
}

func statsText(st *storage.Stats) string {
	return fmt.Sprintf(
		"📊 Stats\n"+
			"━━━━━━━━━━━━━━━━\n"+
			"👥 Active users: %d\n"+
			"🚫 Banned: %d\n"+
			"⏳ Pending payments: %d\n"+
			"✅ Approved payments: %d\n"+
			"🤖 Active clones: %d",
		st.Users, st.Banned, st.PendingPayments, st.ApprovedPayments, st.ActiveClones)
}

func paymentListText(payments []storage.Payment) string {
	if len(payments) == 0 {
		return "💳 No payments yet."
	}
	var b strings.Builder
	b.WriteString("💳 Recent Payments\n━━━━━━━━━━━━━━━━\n")
	for _, p := range payments {
		icon := "⏳"
		switch p.Status {
		case storage.StatusApproved:
			icon = "✅"
		case storage.StatusRejected:
			icon = "❌"
		}
		fmt.Fprintf(&b, "\n%s #%d - user %d, %d days, ₹%d (%s)",
			icon, p.ID, p.UserID, p.PlanDays, p.PlanPrice, p.Status)
	}
	return b.String()
}

func cloneIssuedText(botUsername string, userID int64, planDays int) string {
	return fmt.Sprintf(
		"✅ Clone Bot Created!\n\n"+
			"Bot: @%s\n"+
			"User ID: %d\n"+
			"Plan: %d days", botUsername, userID, planDays)
}

func pluralS(n int) string {
	if n > 1 {
		return "s"
	}
	return ""
}
