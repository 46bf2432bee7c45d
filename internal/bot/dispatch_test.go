package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samrelay/relayhub/config"
)

const sampleToken = "123456789:AAHdqTcvbc1vZWxkseufqzzz987654321abc"

func TestSplitCredential(t *testing.T) {
	token, target := splitCredential(sampleToken)
	assert.Equal(t, sampleToken, token)
	assert.Zero(t, target)

	token, target = splitCredential("42 " + sampleToken)
	assert.Equal(t, sampleToken, token)
	assert.Equal(t, int64(42), target)

	token, _ = splitCredential("hello there")
	assert.Empty(t, token)

	token, _ = splitCredential("42 not-a-token")
	assert.Empty(t, token)
}

func TestPlanButtonText(t *testing.T) {
	assert.Equal(t, "1 Day - ₹2", planButtonText(config.Plan{Days: 1, Price: 2}))
	assert.Equal(t, "7 Days - ₹12", planButtonText(config.Plan{Days: 7, Price: 12}))
}

func TestUPILink(t *testing.T) {
	link := upiLink(config.Plan{Days: 7, Price: 12}, "pay@upi")
	assert.Equal(t, "upi://pay?pa=pay@upi&am=12&cu=INR&tn=7days", link)
}

func TestApprovalMarkup(t *testing.T) {
	b := &Bot{}
	markup := b.approvalMarkup(3, 7)
	if assert.Len(t, markup.InlineKeyboard, 1) {
		row := markup.InlineKeyboard[0]
		if assert.Len(t, row, 2) {
			assert.Contains(t, row[0].Data, "3|7")
			assert.Contains(t, row[1].Data, "3|7")
		}
	}
}
