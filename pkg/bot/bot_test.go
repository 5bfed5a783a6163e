package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v3"

	"medcourier/pkg/lifecycle"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/service"
	"medcourier/storage/memory"
)

type call struct {
	method string
	params map[string]any
}

type fakeAPI struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var params map[string]any
	_ = json.NewDecoder(r.Body).Decode(&params)
	f.mu.Lock()
	f.calls = append(f.calls, call{method: r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], params: params})
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":9,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`))
}

func (f *fakeAPI) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no bot api calls")
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeAPI) find(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

type env struct {
	api   *fakeAPI
	tb    *tele.Bot
	store *memory.Store
	svc   service.IServiceManager
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	tb, err := tele.NewBot(tele.Settings{Token: "tok", URL: srv.URL, Offline: true, Synchronous: true})
	if err != nil {
		t.Fatal(err)
	}

	store := memory.New()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	year := now.AddDate(1, 0, 0)
	for _, f := range []string{"p1", "p2"} {
		_ = store.Facility().Create(ctx, &models.Facility{ID: f, Name: "Clinic " + f})
	}
	_ = store.Driver().Create(ctx, &models.Driver{ID: "d1", Name: "Dana", Status: models.DriverAvailable, LicenseExpiry: &year, FleetRole: models.FleetRoleIndependent})
	_ = store.Driver().Create(ctx, &models.Driver{ID: "d2", Name: "Lee", Status: models.DriverAvailable, LicenseExpiry: &year, FleetRole: models.FleetRoleIndependent})
	_ = store.Contact().Upsert(ctx, &models.Contact{PartyType: models.UserDriver, PartyID: "d1", Phone: ptr("+1 (555) 010-2000")})
	_ = store.Vehicle().Create(ctx, &models.Vehicle{ID: "v1", DriverID: "d1", IsActive: true, RegistrationExpiry: &year, InsuranceExpiry: &year})

	svc, err := service.New(store, logger.NewNop(), service.Options{Clock: func() time.Time { return now }})
	if err != nil {
		t.Fatal(err)
	}
	New(tb, svc, store, logger.NewNop())
	return &env{api: api, tb: tb, store: store, svc: svc}
}

func (e *env) text(chat int64, s string) {
	e.tb.ProcessUpdate(tele.Update{Message: &tele.Message{ID: 1, Text: s, Chat: &tele.Chat{ID: chat}, Sender: &tele.User{ID: chat}}})
}

// share sends a contact card from chat. owner is the Telegram user the card
// belongs to.
func (e *env) share(chat, owner int64, phone string) {
	e.tb.ProcessUpdate(tele.Update{Message: &tele.Message{
		ID:      2,
		Chat:    &tele.Chat{ID: chat},
		Sender:  &tele.User{ID: chat},
		Contact: &tele.Contact{PhoneNumber: phone, FirstName: "Dana", UserID: owner},
	}})
}

// link links chat to d1 the way a driver does.
func (e *env) link(t *testing.T, chat int64) {
	t.Helper()
	e.text(chat, "/start d1")
	e.share(chat, chat, "15550102000")
	if c := e.api.last(t); !strings.Contains(str(c, "text"), "Linked to driver Dana") {
		t.Fatalf("link: %q", str(c, "text"))
	}
}

func (e *env) press(chat int64, action lifecycle.Action, loadID string) {
	e.tb.ProcessUpdate(tele.Update{Callback: &tele.Callback{
		ID:      "cb",
		Data:    "\f" + btnAction.Unique + "|" + string(action) + "|" + loadID,
		Sender:  &tele.User{ID: chat},
		Message: &tele.Message{ID: 9, Chat: &tele.Chat{ID: chat}},
	}})
}

func (e *env) load(t *testing.T, driverID *string) *models.Load {
	t.Helper()
	auth := models.AuthContext{UserID: "s1", UserType: models.UserShipper}
	if driverID != nil {
		// Only dispatch directs a load at a driver.
		auth = models.AuthContext{UserID: "a1", UserType: models.UserAdmin}
	}
	out, err := e.svc.Load().Create(context.Background(), auth, lifecycle.NewLoad{
		ShipperID: "s1", PickupFacilityID: "p1", DropoffFacilityID: "p2", ServiceType: "ROUTINE", DistanceMiles: 20, DriverID: driverID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return out.Load
}

func (e *env) status(t *testing.T, id string) *models.Load {
	t.Helper()
	l, err := e.store.Load().GetByID(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func str(c call, key string) string {
	s, _ := c.params[key].(string)
	return s
}

func TestLinkChat(t *testing.T) {
	e := newEnv(t)

	steps := []struct {
		name string
		do   func()
		want string
	}{
		{"unlinked", func() { e.text(42, "/start") }, "not linked"},
		{"unknown driver", func() { e.text(42, "/start nobody") }, "No driver with ID nobody"},
		{"no phone on file", func() { e.text(42, "/start d2") }, "no phone number on file"},
		{"asks for phone", func() { e.text(42, "/start d1") }, "share your phone number"},
		{"someone else's card", func() { e.share(42, 7, "15550102000") }, "your own number"},
		{"wrong number", func() { e.share(42, 42, "15550109999") }, "not the one on file"},
		{"mismatch ends the attempt", func() { e.share(42, 42, "15550102000") }, "not linked"},
		{"asks again", func() { e.text(42, "/start d1") }, "share your phone number"},
		{"link", func() { e.share(42, 42, "+1 555 010 2000") }, "Linked to driver Dana"},
		{"welcome back", func() { e.text(42, "/start") }, "Welcome back, Dana"},
		{"other chat", func() { e.text(43, "/start d1") }, "already linked to another chat"},
	}
	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			s.do()
			c := e.api.last(t)
			if c.method != "sendMessage" || !strings.Contains(str(c, "text"), s.want) {
				t.Errorf("%s: %q, want %q", c.method, str(c, "text"), s.want)
			}
		})
	}

	contact, err := e.store.Contact().Get(context.Background(), models.UserDriver, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if contact.TelegramChatID == nil || *contact.TelegramChatID != 42 || contact.Name != "Dana" {
		t.Errorf("contact = %+v", contact)
	}
}

func TestStrangerCannotActAsDriver(t *testing.T) {
	e := newEnv(t)
	l := e.load(t, ptr("d1"))

	e.text(999, "/start d1")
	e.share(999, 999, "15550000000")
	e.press(999, lifecycle.ActionDeny, l.ID)
	e.text(999, "not mine")

	if got := e.status(t, l.ID); got.Status != models.StatusRequested || got.DenialReason != nil {
		t.Errorf("load = %s %v", got.Status, got.DenialReason)
	}
	if _, err := e.store.Contact().GetByTelegramChat(context.Background(), 999); err == nil {
		t.Error("stranger chat was linked")
	}
}

func TestUnlinkTakesEffect(t *testing.T) {
	e := newEnv(t)
	e.link(t, 42)
	l := e.load(t, ptr("d1"))

	dispatch := models.AuthContext{UserID: "a1", UserType: models.UserAdmin}
	if _, err := e.svc.Fleet().SetDriverContact(context.Background(), dispatch, "d1", "", true); err != nil {
		t.Fatal(err)
	}

	e.press(42, lifecycle.ActionDriverAccept, l.ID)
	if c := e.api.last(t); !strings.Contains(str(c, "text"), "not linked") {
		t.Errorf("press after unlink = %v", c)
	}
	if got := e.status(t, l.ID).Status; got != models.StatusRequested {
		t.Errorf("status = %s", got)
	}
}

func TestDriverWorksLoad(t *testing.T) {
	e := newEnv(t)
	e.link(t, 42)
	l := e.load(t, ptr("d1"))

	e.api.reset()
	e.text(42, textMyLoads)
	c := e.api.last(t)
	if !strings.Contains(str(c, "text"), l.ID) || !strings.Contains(str(c, "text"), "Clinic p1") {
		t.Errorf("card = %q", str(c, "text"))
	}
	if markup := str(c, "reply_markup"); !strings.Contains(markup, "driver_accept") || !strings.Contains(markup, "deny") {
		t.Errorf("markup = %s", markup)
	}

	steps := []struct {
		action lifecycle.Action
		want   models.LoadStatus
		next   string
	}{
		{lifecycle.ActionDriverAccept, models.StatusScheduled, "pickup"},
		{lifecycle.ActionPickup, models.StatusPickedUp, "start_transit"},
		{lifecycle.ActionStartTransit, models.StatusInTransit, "deliver"},
		{lifecycle.ActionDeliver, models.StatusDelivered, ""},
	}
	for _, s := range steps {
		e.api.reset()
		e.press(42, s.action, l.ID)
		got := e.status(t, l.ID)
		if got.Status != s.want {
			t.Fatalf("%s: status = %s, want %s", s.action, got.Status, s.want)
		}
		edits := e.api.find("editMessageText")
		if len(edits) != 1 || !strings.Contains(str(edits[0], "text"), string(s.want)) {
			t.Fatalf("%s: edits = %v", s.action, edits)
		}
		if s.next != "" && !strings.Contains(str(edits[0], "reply_markup"), s.next) {
			t.Errorf("%s: markup %s lacks %s", s.action, str(edits[0], "reply_markup"), s.next)
		}
	}
	if l := e.status(t, l.ID); l.VehicleID == nil || *l.VehicleID != "v1" {
		t.Errorf("vehicle = %v", l.VehicleID)
	}

	e.api.reset()
	e.text(42, textMyLoads)
	if c := e.api.last(t); !strings.Contains(str(c, "text"), "DELIVERED") {
		t.Errorf("delivered load should still be listed: %q", str(c, "text"))
	}
}

func TestQuoteFlow(t *testing.T) {
	e := newEnv(t)
	e.link(t, 42)
	l := e.load(t, nil)

	e.api.reset()
	e.text(42, textOpenLoads)
	if c := e.api.last(t); !strings.Contains(str(c, "reply_markup"), "claim_for_quote") {
		t.Fatalf("open load markup = %s", str(c, "reply_markup"))
	}

	e.press(42, lifecycle.ActionClaimForQuote, l.ID)
	if got := e.status(t, l.ID).Status; got != models.StatusDriverQuotePending {
		t.Fatalf("status = %s", got)
	}

	e.press(42, lifecycle.ActionSubmitDriverQuote, l.ID)
	if c := e.api.last(t); !strings.Contains(str(c, "text"), "Send your quote") {
		t.Fatalf("prompt = %q", str(c, "text"))
	}

	e.text(42, "lots")
	if c := e.api.last(t); !strings.Contains(str(c, "text"), "not an amount") {
		t.Errorf("bad amount reply = %q", str(c, "text"))
	}

	e.text(42, "$45")
	got := e.status(t, l.ID)
	if got.Status != models.StatusDriverQuoteSubmitted || got.DriverQuoteAmount == nil || *got.DriverQuoteAmount != 45 {
		t.Fatalf("load = %s %v", got.Status, got.DriverQuoteAmount)
	}

	e.api.reset()
	e.text(42, "90")
	if calls := e.api.find("sendMessage"); len(calls) != 0 {
		t.Errorf("idle text should be ignored, got %v", calls)
	}
}

func TestDeclineWithReason(t *testing.T) {
	e := newEnv(t)
	e.link(t, 42)
	l := e.load(t, ptr("d1"))

	e.press(42, lifecycle.ActionDeny, l.ID)
	e.text(42, "vehicle in the shop")

	got := e.status(t, l.ID)
	if got.Status != models.StatusDenied || got.DenialReason == nil || *got.DenialReason != "vehicle in the shop" {
		t.Errorf("load = %s %v", got.Status, got.DenialReason)
	}
}

func TestRejectedActionAlerts(t *testing.T) {
	e := newEnv(t)
	e.link(t, 42)
	l := e.load(t, nil)

	e.api.reset()
	e.press(42, lifecycle.ActionPickup, l.ID)
	answers := e.api.find("answerCallbackQuery")
	if len(answers) != 1 || answers[0].params["show_alert"] != true {
		t.Fatalf("answers = %v", answers)
	}
	if got := e.status(t, l.ID).Status; got != models.StatusNew {
		t.Errorf("status = %s", got)
	}

	e.api.reset()
	e.press(77, lifecycle.ActionPickup, l.ID)
	if c := e.api.last(t); !strings.Contains(str(c, "text"), "not linked") {
		t.Errorf("unlinked press = %v", c)
	}
}

func ptr[T any](v T) *T { return &v }
