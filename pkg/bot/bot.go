// Package bot is the driver-facing Telegram surface. A driver links a chat by
// sharing the phone number dispatch has on file, then works their loads from
// inline buttons; every button goes through the same LoadService as the other
// transports.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/service"
	"medcourier/storage"
)

type state string

const (
	stateIdle        state = "idle"
	stateQuoteAmount state = "awaiting_quote_amount"
	stateDenyReason  state = "awaiting_deny_reason"
)

type session struct {
	DriverID string
	State    state
	LoadID   string
}

type Bot struct {
	Bot *tele.Bot
	Svc service.IServiceManager
	Stg storage.IStorage
	Log logger.ILogger

	mu       sync.Mutex
	sessions map[int64]*session
	// pending holds chats that asked for a driver and still owe the phone.
	pending map[int64]string
}

const (
	textMyLoads   = "📋 My loads"
	textOpenLoads = "📦 Open loads"
)

var btnAction = tele.Btn{Unique: "act"}

var messages = map[string]map[string]string{
	"en": {
		"welcome":        "👋 Welcome back, %s.",
		"unlinked":       "🔗 This chat is not linked to a driver yet. Send /start followed by your driver ID.",
		"share_phone":    "📱 To confirm you are driver %s, share your phone number with the button below.",
		"share_button":   "📱 Share my phone",
		"own_number":     "❌ Share your own number with the button below.",
		"no_phone":       "🚫 Driver %s has no phone number on file. Ask dispatch to add it.",
		"phone_mismatch": "🚫 That number is not the one on file for driver %s.",
		"linked":         "✅ Linked to driver %s. You will get load updates here.",
		"unknown_driver": "❓ No driver with ID %s.",
		"linked_other":   "🚫 Driver %s is already linked to another chat. Ask dispatch to reset it.",
		"inactive":       "🚫 Your driver account is %s.",
		"menu":           "🚚 Driver menu:",
		"no_loads":       "📭 You have no active loads.",
		"no_open":        "📭 No open loads right now.",
		"quote_prompt":   "💲 Send your quote for load <code>%s</code> as a number, e.g. 85.50",
		"deny_prompt":    "✏️ Why are you declining load <code>%s</code>?",
		"bad_amount":     "❌ %q is not an amount. Send a number, e.g. 85.50",
		"failed":         "❌ %s",
		"warning":        "⚠️ %s",
	},
}

func msg(key string, args ...any) string {
	if len(args) == 0 {
		return messages["en"][key]
	}
	return fmt.Sprintf(messages["en"][key], args...)
}

// New registers the driver handlers on tb. tb is usually shared with the
// Telegram notifier.
func New(tb *tele.Bot, svc service.IServiceManager, stg storage.IStorage, log logger.ILogger) *Bot {
	b := &Bot{
		Bot:      tb,
		Svc:      svc,
		Stg:      stg,
		Log:      log,
		sessions: make(map[int64]*session),
		pending:  make(map[int64]string),
	}
	b.registerHandlers()
	return b
}

// Run polls for updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.Log.Info("🤖 driver bot started")
	go b.Bot.Start()
	<-ctx.Done()
	b.Bot.Stop()
	b.Log.Info("driver bot stopped")
	return nil
}

func (b *Bot) registerHandlers() {
	b.Bot.Handle("/start", b.handleStart)
	b.Bot.Handle(textMyLoads, b.handleMyLoads)
	b.Bot.Handle(textOpenLoads, b.handleOpenLoads)
	b.Bot.Handle(&btnAction, b.handleAction)
	b.Bot.Handle(tele.OnText, b.handleText)
	b.Bot.Handle(tele.OnContact, b.handleContact)
}

func (b *Bot) handleStart(c tele.Context) error {
	if id := strings.TrimSpace(c.Message().Payload); id != "" {
		return b.link(c, id)
	}
	s, d, err := b.session(c)
	if err != nil {
		return b.fail(c, err)
	}
	if s == nil {
		return c.Send(msg("unlinked"))
	}
	return b.showMenu(c, msg("welcome", d.Name))
}

// link starts linking the chat to driverID. The chat is only bound once the
// sender shares the phone number on the driver's contact.
func (b *Bot) link(c tele.Context, driverID string) error {
	ctx := context.Background()
	chatID := c.Chat().ID

	d, contact, err := b.driverContact(ctx, driverID)
	if errs.IsNotFound(err) {
		return c.Send(msg("unknown_driver", driverID))
	}
	if err != nil {
		return b.fail(c, err)
	}
	switch {
	case contact == nil || contact.Phone == nil || *contact.Phone == "":
		return c.Send(msg("no_phone", driverID))
	case contact.TelegramChatID != nil && *contact.TelegramChatID != chatID:
		return c.Send(msg("linked_other", driverID))
	case contact.TelegramChatID != nil:
		return b.showMenu(c, msg("welcome", d.Name))
	}

	b.mu.Lock()
	b.pending[chatID] = driverID
	b.mu.Unlock()

	menu := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	menu.Reply(menu.Row(menu.Contact(msg("share_button"))))
	return c.Send(msg("share_phone", driverID), menu)
}

func (b *Bot) handleContact(c tele.Context) error {
	ctx := context.Background()
	chatID := c.Chat().ID

	b.mu.Lock()
	driverID, ok := b.pending[chatID]
	b.mu.Unlock()
	if !ok {
		return c.Send(msg("unlinked"))
	}
	shared := c.Message().Contact
	if c.Sender() == nil || shared.UserID != c.Sender().ID {
		return c.Send(msg("own_number"))
	}

	b.mu.Lock()
	delete(b.pending, chatID)
	b.mu.Unlock()

	d, contact, err := b.driverContact(ctx, driverID)
	if err != nil {
		return b.fail(c, err)
	}
	if contact == nil || contact.Phone == nil || !models.SamePhone(*contact.Phone, shared.PhoneNumber) {
		b.Log.Warning("telegram link refused, phone mismatch",
			logger.String("driver_id", driverID),
			logger.Int64("chat_id", chatID),
		)
		return c.Send(msg("phone_mismatch", driverID), tele.RemoveKeyboard)
	}
	if contact.TelegramChatID != nil && *contact.TelegramChatID != chatID {
		return c.Send(msg("linked_other", driverID), tele.RemoveKeyboard)
	}

	contact.Name = d.Name
	contact.TelegramChatID = &chatID
	if err := b.Stg.Contact().Upsert(ctx, contact); err != nil {
		return b.fail(c, err)
	}

	b.mu.Lock()
	b.sessions[chatID] = &session{DriverID: d.ID, State: stateIdle}
	b.mu.Unlock()

	b.Log.Info("telegram chat linked", logger.String("driver_id", d.ID), logger.Int64("chat_id", chatID))
	return b.showMenu(c, msg("linked", d.Name))
}

// driverContact loads the driver and its contact. A missing contact is nil,
// not an error.
func (b *Bot) driverContact(ctx context.Context, driverID string) (*models.Driver, *models.Contact, error) {
	d, err := b.Stg.Driver().GetByID(ctx, driverID)
	if err != nil {
		return nil, nil, err
	}
	contact, err := b.Stg.Contact().Get(ctx, models.UserDriver, driverID)
	if errs.IsNotFound(err) {
		return d, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return d, contact, nil
}

// session resolves the chat to a driver through the stored link, so a link
// dispatch dropped takes effect at once. A nil session with a nil error
// means the chat is not linked.
func (b *Bot) session(c tele.Context) (*session, *models.Driver, error) {
	ctx := context.Background()
	chatID := c.Chat().ID

	contact, err := b.Stg.Contact().GetByTelegramChat(ctx, chatID)
	if errs.IsNotFound(err) {
		b.forget(chatID)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if contact.PartyType != models.UserDriver {
		return nil, nil, nil
	}

	b.mu.Lock()
	s, ok := b.sessions[chatID]
	if !ok || s.DriverID != contact.PartyID {
		s = &session{DriverID: contact.PartyID, State: stateIdle}
		b.sessions[chatID] = s
	}
	b.mu.Unlock()

	d, err := b.Stg.Driver().GetByID(ctx, s.DriverID)
	if err != nil {
		return nil, nil, err
	}
	return s, d, nil
}

func (b *Bot) forget(chatID int64) {
	b.mu.Lock()
	delete(b.sessions, chatID)
	b.mu.Unlock()
}

func (b *Bot) setState(c tele.Context, st state, loadID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[c.Chat().ID]; ok {
		s.State = st
		s.LoadID = loadID
	}
}

func (b *Bot) showMenu(c tele.Context, text string) error {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(menu.Row(menu.Text(textMyLoads)), menu.Row(menu.Text(textOpenLoads)))
	return c.Send(text+"\n\n"+msg("menu"), menu)
}

// fail reports err to the chat. Caller mistakes are shown as is; anything
// else is logged and hidden.
func (b *Bot) fail(c tele.Context, err error) error {
	text := err.Error()
	if !errs.IsValidation(err) && !errs.IsAuthorization(err) && !errs.IsNotFound(err) {
		b.Log.Error("driver bot request failed", logger.Int64("chat_id", c.Chat().ID), logger.Error(err))
		text = "something went wrong, try again later"
	}
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: msg("failed", text), ShowAlert: true})
	}
	return c.Send(msg("failed", text))
}
