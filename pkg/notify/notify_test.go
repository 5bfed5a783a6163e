package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	amqp "github.com/rabbitmq/amqp091-go"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/storage/memory"
)

type delivery struct {
	kind    models.NotificationKind
	party   models.Party
	contact bool
	loadID  string
}

type recorder struct {
	mu   sync.Mutex
	got  []delivery
	fail map[string]bool
}

func (r *recorder) Notify(ctx context.Context, kind models.NotificationKind, a Address, p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, delivery{kind: kind, party: a.Party, contact: a.Contact != nil, loadID: p.LoadID})
	if r.fail[a.Party.ID] {
		return errors.New("channel down")
	}
	return nil
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	chat := int64(42)
	if err := store.Contact().Upsert(ctx, &models.Contact{PartyType: models.UserShipper, PartyID: "s1", TelegramChatID: &chat}); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{fail: map[string]bool{"d1": true}}
	d := NewDispatcher(rec, store.Contact(), logger.NewNop(), time.Second)
	d.Dispatch(ctx, []models.Notification{
		{Kind: models.NotifyLoadCancelled, Recipient: models.Party{Type: models.UserShipper, ID: "s1"}, LoadID: "l1"},
		{Kind: models.NotifyLoadCancelled, Recipient: models.Party{Type: models.UserDriver, ID: "d1"}, LoadID: "l1"},
	})
	d.Wait()

	want := map[string]delivery{
		"s1": {kind: models.NotifyLoadCancelled, party: models.Party{Type: models.UserShipper, ID: "s1"}, contact: true, loadID: "l1"},
		"d1": {kind: models.NotifyLoadCancelled, party: models.Party{Type: models.UserDriver, ID: "d1"}, contact: false, loadID: "l1"},
	}
	got := make(map[string]delivery)
	for _, g := range rec.got {
		got[g.party.ID] = g
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(delivery{})); diff != "" {
		t.Errorf("deliveries (-want +got):\n%s", diff)
	}
}

func TestDispatcherTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	slow := NotifierFunc(func(ctx context.Context, kind models.NotificationKind, a Address, p Payload) error {
		<-ctx.Done()
		done <- ctx.Err()
		return ctx.Err()
	})

	d := NewDispatcher(slow, nil, logger.NewNop(), 20*time.Millisecond)
	d.Dispatch(ctx, []models.Notification{{Kind: models.NotifyLoadDelivered, LoadID: "l1"}})
	// The caller's cancellation does not reach the delivery; only the timeout does.
	cancel()
	d.Wait()

	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("delivery ended with %v, want deadline exceeded", err)
	}
}

func TestMulti(t *testing.T) {
	ok := &recorder{}
	bad := NotifierFunc(func(context.Context, models.NotificationKind, Address, Payload) error {
		return errors.New("boom")
	})
	err := Multi{bad, ok, NewLog(logger.NewNop())}.Notify(context.Background(), models.NotifyQuoteSent,
		Address{Party: models.Party{Type: models.UserShipper, ID: "s1"}}, Payload{LoadID: "l1"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v", err)
	}
	if len(ok.got) != 1 {
		t.Errorf("healthy notifier got %d deliveries", len(ok.got))
	}
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestRabbit(t *testing.T) {
	ch := &fakeChannel{}
	r := NewRabbit(ch, "load_events")
	at := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	err := r.Notify(context.Background(), models.NotifyQuoteSubmitted,
		Address{Party: models.Party{Type: models.UserShipper, ID: "s1"}},
		Payload{LoadID: "l1", Subject: "quote", Data: map[string]string{"amount": "70.00"}, At: at})
	if err != nil {
		t.Fatal(err)
	}

	if ch.exchange != "load_events" || ch.key != "load.quote-submitted" {
		t.Errorf("published to %s/%s", ch.exchange, ch.key)
	}
	if ch.msg.DeliveryMode != amqp.Persistent || ch.msg.ContentType != "application/json" {
		t.Errorf("publishing = %+v", ch.msg)
	}
	var ev loadEvent
	if err := json.Unmarshal(ch.msg.Body, &ev); err != nil {
		t.Fatal(err)
	}
	want := loadEvent{
		Kind: models.NotifyQuoteSubmitted, LoadID: "l1", RecipientType: models.UserShipper, RecipientID: "s1",
		Subject: "quote", Data: map[string]string{"amount": "70.00"}, At: "2026-03-10T15:00:00Z",
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("body (-want +got):\n%s", diff)
	}

	ch.err = amqp.ErrClosed
	if err := r.Notify(context.Background(), models.NotifyQuoteSubmitted, Address{}, Payload{}); !errors.Is(err, amqp.ErrClosed) {
		t.Errorf("err = %v", err)
	}
}

func TestTelegram(t *testing.T) {
	var (
		path string
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
	}))
	defer srv.Close()

	tg, err := NewTelegram(TelegramSettings{Token: "tok", URL: srv.URL, Offline: true}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	chat := int64(42)
	addr := Address{
		Party:   models.Party{Type: models.UserDriver, ID: "d1"},
		Contact: &models.Contact{PartyType: models.UserDriver, PartyID: "d1", TelegramChatID: &chat},
	}
	err = tg.Notify(context.Background(), models.NotifyDriverAssigned, addr,
		Payload{LoadID: "l1", Subject: "You have been assigned load l1", Data: map[string]string{"service_type": "STAT"}})
	if err != nil {
		t.Fatal(err)
	}
	if path != "/bottok/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if body["chat_id"] != "42" || body["parse_mode"] != "HTML" {
		t.Errorf("body = %v", body)
	}
	text, _ := body["text"].(string)
	if !strings.Contains(text, "New assignment") || !strings.Contains(text, "service type: STAT") {
		t.Errorf("text = %q", text)
	}

	path = ""
	if err := tg.Notify(context.Background(), models.NotifyDriverAssigned, Address{Party: addr.Party}, Payload{}); err != nil || path != "" {
		t.Errorf("recipient without chat: err %v, path %q", err, path)
	}
}

func TestCalendar(t *testing.T) {
	var (
		calls int
		got   calendar.Event
		path  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt1"}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	c, err := NewCalendar(ctx, "dispatch", "America/New_York",
		option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}

	addr := Address{Party: models.Party{Type: models.UserDriver, ID: "d1"}}
	data := map[string]string{
		"ready_time":          "2026-03-10T15:00:00Z",
		"pickup_facility_id":  "p1",
		"dropoff_facility_id": "p2",
		"service_type":        "STAT",
	}
	if err := c.Notify(ctx, models.NotifyDriverAssigned, addr, Payload{LoadID: "l1", Data: data}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 || path != "/calendars/dispatch/events" {
		t.Fatalf("calls = %d path = %s", calls, path)
	}
	if got.Start == nil || got.Start.DateTime != "2026-03-10T15:00:00Z" || got.End.DateTime != "2026-03-10T16:00:00Z" {
		t.Errorf("event times = %+v %+v", got.Start, got.End)
	}
	if !strings.Contains(got.Summary, "p1") || !strings.Contains(got.Description, "l1") {
		t.Errorf("event = %q / %q", got.Summary, got.Description)
	}

	for _, tc := range []struct {
		kind models.NotificationKind
		data map[string]string
	}{
		{models.NotifyLoadDelivered, data},
		{models.NotifyDriverAssigned, map[string]string{"pickup_facility_id": "p1"}},
	} {
		if err := c.Notify(ctx, tc.kind, addr, Payload{LoadID: "l1", Data: tc.data}); err != nil {
			t.Errorf("%s: %v", tc.kind, err)
		}
	}
	if calls != 1 {
		t.Errorf("calendar called %d times, want 1", calls)
	}
}
