package notify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"medcourier/pkg/logger"
	"medcourier/pkg/models"
)

type TelegramSettings struct {
	Token string
	// URL overrides the Bot API endpoint.
	URL string
	// Offline skips the getMe call made when the bot is built.
	Offline bool
}

// Telegram sends notifications as chat messages to parties that have a
// Telegram chat on file.
type Telegram struct {
	bot *tele.Bot
	log logger.ILogger
}

func NewTelegram(s TelegramSettings, log logger.ILogger) (*Telegram, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:   s.Token,
		URL:     s.URL,
		Offline: s.Offline,
		Poller:  &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: b, log: log}, nil
}

// Bot is the underlying client, shared with the driver bot so both use one
// token and one poller.
func (t *Telegram) Bot() *tele.Bot {
	return t.bot
}

func (t *Telegram) Notify(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error {
	if address.Contact == nil || address.Contact.TelegramChatID == nil {
		t.log.Debug("no telegram chat for recipient",
			logger.String("recipient_id", address.Party.ID),
			logger.String("kind", string(kind)),
		)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	chat := tele.ChatID(*address.Contact.TelegramChatID)
	if _, err := t.bot.Send(chat, telegramText(kind, payload), tele.ModeHTML); err != nil {
		return fmt.Errorf("telegram send to %d: %w", *address.Contact.TelegramChatID, err)
	}
	return nil
}

var kindTitles = map[models.NotificationKind]string{
	models.NotifyLoadCancelled:       "❌ Load cancelled",
	models.NotifyLoadDenied:          "🚫 Load declined",
	models.NotifyQuoteSubmitted:      "💵 New driver quote",
	models.NotifyDriverAssigned:      "🚚 New assignment",
	models.NotifyQuoteSent:           "💵 Quote ready",
	models.NotifyQuoteAccepted:       "✅ Quote accepted",
	models.NotifyDriverQuoteApproved: "✅ Your quote was approved",
	models.NotifyDriverQuoteRejected: "↩️ Your quote was declined",
	models.NotifyLoadPickedUp:        "📦 Picked up",
	models.NotifyLoadDelivered:       "🏁 Delivered",
	models.NotifyLoadRestored:        "🔄 Load restored",
}

func telegramText(kind models.NotificationKind, p Payload) string {
	title, ok := kindTitles[kind]
	if !ok {
		title = string(kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n%s\n", title, html.EscapeString(p.Subject))
	keys := make([]string, 0, len(p.Data))
	for k := range p.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if p.Data[k] == "" {
			continue
		}
		fmt.Fprintf(&b, "\n%s: %s", strings.ReplaceAll(k, "_", " "), html.EscapeString(p.Data[k]))
	}
	fmt.Fprintf(&b, "\n\nID: <code>%s</code>", html.EscapeString(p.LoadID))
	return b.String()
}
