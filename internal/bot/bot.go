// Package bot wires Telegram updates to the relay, provisioning and
// broadcast services: command handlers, callback handlers and the
// text/media dispatch order.
package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/samrelay/relayhub/config"
	"github.com/samrelay/relayhub/internal/broadcast"
	"github.com/samrelay/relayhub/internal/gateway"
	"github.com/samrelay/relayhub/internal/provision"
	"github.com/samrelay/relayhub/internal/relay"
	"github.com/samrelay/relayhub/internal/state"
	"github.com/samrelay/relayhub/internal/storage"
	"github.com/samrelay/relayhub/internal/telegram"
	"github.com/samrelay/relayhub/internal/telegram/commands"
	tghelpers "github.com/samrelay/relayhub/internal/telegram/helpers"
	"github.com/samrelay/relayhub/internal/telegram/middleware"
)

// Callback uniques shared between keyboards and the registry.
const (
	cbUserSend      = "user_send"
	cbPaidBatches   = "paid_batches"
	cbCloneBot      = "clone_bot"
	cbPlan          = "plan"
	cbMyClone       = "my_clone"
	cbUserHelp      = "user_help"
	cbCancelPayment = "cancel_payment"

	cbOwnerStats     = "owner_stats"
	cbOwnerActive    = "owner_active"
	cbOwnerBanned    = "owner_banned"
	cbUserInfo       = "userinfo"
	cbBanUser        = "ban"
	cbUnbanUser      = "unban"
	cbOwnerBan       = "owner_ban"
	cbOwnerUnban     = "owner_unban"
	cbOwnerBroadcast = "owner_broadcast"
	cbEditBatches    = "edit_batches"
	cbOwnerPayments  = "owner_payments"
	cbOwnerCancel    = "owner_cancel"

	cbApprove = "approve"
	cbReject  = "reject"
)

// Bot routes updates between the operator and the services.
type Bot struct {
	cfg        *config.Config
	store      storage.Store
	gw         gateway.Gateway
	relay      *relay.Service
	prov       *provision.Service
	cast       *broadcast.Service
	opState    *state.Machine
	operatorID int64
}

// New assembles the bot on top of already-built services.
func New(cfg *config.Config, store storage.Store, gw gateway.Gateway,
	relaySvc *relay.Service, provSvc *provision.Service, castSvc *broadcast.Service) *Bot {
	return &Bot{
		cfg:        cfg,
		store:      store,
		gw:         gw,
		relay:      relaySvc,
		prov:       provSvc,
		cast:       castSvc,
		opState:    state.NewMachine(),
		operatorID: cfg.Telegram.OperatorID,
	}
}

func (b *Bot) isOperator(c tele.Context) bool {
	return c.Sender() != nil && c.Sender().ID == b.operatorID
}

// Bind registers commands and callbacks and returns the middleware chain
// and routes for RunTelegram.
func (b *Bot) Bind(reg *telegram.Registry) ([]telegram.Middleware, []telegram.Route) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     b.handleStart,
		Description: "Open the menu",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     b.handleCancel,
		Description: "Cancel the current action",
	})

	for key, h := range map[string]tele.HandlerFunc{
		cbUserSend:      b.cbUserSendPrompt,
		cbPaidBatches:   b.cbPaidBatches,
		cbCloneBot:      b.cbPlanMenu,
		cbPlan:          b.cbPlanSelected,
		cbMyClone:       b.cbMyClone,
		cbUserHelp:      b.cbUserHelp,
		cbCancelPayment: b.cbCancelPayment,
	} {
		_ = reg.RegisterCallback(key, h)
	}

	opOpts := middleware.OperatorOptions{
		OperatorID: b.operatorID,
		OnReject: func(c tele.Context) error {
			return tghelpers.Answer(c, "Not allowed", false)
		},
	}
	for key, h := range map[string]tele.HandlerFunc{
		cbOwnerStats:     b.cbOwnerStats,
		cbOwnerActive:    b.cbOwnerActive,
		cbOwnerBanned:    b.cbOwnerBanned,
		cbUserInfo:       b.cbUserInfo,
		cbBanUser:        b.cbBanByButton,
		cbUnbanUser:      b.cbUnbanByButton,
		cbOwnerBan:       b.cbBeginBan,
		cbOwnerUnban:     b.cbBeginUnban,
		cbOwnerBroadcast: b.cbBeginBroadcast,
		cbEditBatches:    b.cbBeginEditCatalog,
		cbOwnerPayments:  b.cbOwnerPayments,
		cbOwnerCancel:    b.cbOwnerCancel,
		cbApprove:        b.cbDecide(true),
		cbReject:         b.cbDecide(false),
	} {
		_ = reg.RegisterCallback(key, middleware.WithOperatorCheck(opOpts, true, h))
	}

	reg.SetCallbackNotFound(func(c tele.Context) error {
		return tghelpers.Answer(c, "Unknown action.", false)
	})

	routes := []telegram.Route{
		{Endpoint: tele.OnCallback, Handler: reg.CallbackDispatcher()},
		{Endpoint: tele.OnText, Handler: b.handleText},
	}
	for _, ep := range []string{
		tele.OnPhoto, tele.OnVideo, tele.OnDocument, tele.OnVoice,
		tele.OnAudio, tele.OnVideoNote, tele.OnSticker, tele.OnAnimation,
	} {
		routes = append(routes, telegram.Route{Endpoint: ep, Handler: b.handleMedia})
	}

	commandRoutes := make([]telegram.Route, 0, len(reg.Commands()))
	for name, cmd := range reg.Commands() {
		commandRoutes = append(commandRoutes, telegram.Route{
			Endpoint: name,
			Handler:  middleware.WithOperatorCheck(opOpts, cmd.OperatorOnly, cmd.Handler),
		})
	}
	routes = append(commandRoutes, routes...)

	return telegram.DefaultMiddlewares(b.cfg, nil), routes
}
