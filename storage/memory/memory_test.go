package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"medcourier/pkg/errs"
	"medcourier/pkg/models"
	"medcourier/storage"
)

func seedLoad(t *testing.T, s *Store, status models.LoadStatus) *models.Load {
	t.Helper()
	l := &models.Load{ID: "load-1", Status: status, ShipperID: "shipper-1"}
	if err := s.Load().Create(context.Background(), l, &models.TrackingEvent{ID: "e0", LoadID: l.ID, Code: models.EventLoadCreated}); err != nil {
		t.Fatalf("create: %v", err)
	}
	return l
}

func TestTransitionConditionalWrite(t *testing.T) {
	ctx := context.Background()
	s := New()
	l := seedLoad(t, s, models.StatusScheduled)

	next := l.Clone()
	next.Status = models.StatusCancelled
	err := s.Load().Transition(ctx, storage.TransitionWrite{
		Load:     next,
		Expected: models.StatusNew,
		Event:    &models.TrackingEvent{ID: "e1", LoadID: l.ID, Code: models.EventCancelled},
	})
	var v *errs.ValidationError
	if !errors.As(err, &v) || v.Code != errs.CodeStaleState {
		t.Fatalf("expected stale_state, got %v", err)
	}
	if v.Actual != string(models.StatusScheduled) {
		t.Errorf("actual = %s, want SCHEDULED", v.Actual)
	}

	events, _ := s.Load().Events(ctx, l.ID)
	if len(events) != 1 {
		t.Errorf("a rejected write appended an event: %d events", len(events))
	}

	if err := s.Load().Transition(ctx, storage.TransitionWrite{Load: next, Expected: models.StatusScheduled}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	got, _ := s.Load().GetByID(ctx, l.ID)
	if got.Status != models.StatusCancelled {
		t.Errorf("status = %s", got.Status)
	}
}

func TestTransitionMissingLoad(t *testing.T) {
	s := New()
	err := s.Load().Transition(context.Background(), storage.TransitionWrite{
		Load:     &models.Load{ID: "nope", Status: models.StatusQuoted},
		Expected: models.StatusNew,
	})
	if !errs.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentTransitionsOneWinner(t *testing.T) {
	ctx := context.Background()
	s := New()
	l := seedLoad(t, s, models.StatusScheduled)

	var wins, stale atomic.Int32
	var g errgroup.Group
	for _, target := range []models.LoadStatus{models.StatusPickedUp, models.StatusCancelled, models.StatusNew, models.StatusPickedUp} {
		next := l.Clone()
		next.Status = target
		g.Go(func() error {
			err := s.Load().Transition(ctx, storage.TransitionWrite{Load: next, Expected: models.StatusScheduled})
			switch {
			case err == nil:
				wins.Add(1)
			case errs.HasCode(err, errs.CodeStaleState):
				stale.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if wins.Load() != 1 || stale.Load() != 3 {
		t.Errorf("wins=%d stale=%d", wins.Load(), stale.Load())
	}
}

func TestListExpiredDriverQuotes(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	older := now.Add(-2 * time.Hour)
	future := now.Add(time.Hour)

	for _, l := range []*models.Load{
		{ID: "a", Status: models.StatusDriverQuoteSubmitted, DriverQuoteExpiresAt: &past},
		{ID: "b", Status: models.StatusDriverQuoteSubmitted, DriverQuoteExpiresAt: &future},
		{ID: "c", Status: models.StatusScheduled, DriverQuoteExpiresAt: &past},
		{ID: "d", Status: models.StatusDriverQuoteSubmitted, DriverQuoteExpiresAt: &older},
	} {
		if err := s.Load().Create(ctx, l, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Load().ListExpiredDriverQuotes(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "d" || got[1].ID != "a" {
		ids := make([]string, 0, len(got))
		for _, l := range got {
			ids = append(ids, l.ID)
		}
		t.Errorf("expired = %v, want [d a]", ids)
	}
}

func TestRunTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Driver().Create(ctx, &models.Driver{ID: "d1", FleetRole: models.FleetRoleIndependent})
	one := 1
	_ = s.Fleet().CreateInvite(ctx, &models.FleetInvite{Code: "inv", FleetID: "f1", Role: models.FleetRoleDriver, MaxUses: &one})

	boom := errors.New("boom")
	err := s.RunTx(ctx, func(tx storage.ITx) error {
		if _, ok, err := tx.ConsumeInvite(ctx, "inv", time.Now()); err != nil || !ok {
			t.Fatalf("consume: ok=%v err=%v", ok, err)
		}
		if ok, err := tx.JoinFleet(ctx, "d1", "f1", models.FleetRoleDriver); err != nil || !ok {
			t.Fatalf("join: ok=%v err=%v", ok, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	inv, _ := s.Fleet().GetInvite(ctx, "inv")
	if inv.UsedCount != 0 {
		t.Errorf("used count leaked: %d", inv.UsedCount)
	}
	d, _ := s.Driver().GetByID(ctx, "d1")
	if d.FleetID != nil || d.FleetRole != models.FleetRoleIndependent {
		t.Errorf("membership leaked: %+v", d)
	}
}

func TestListByDriver(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	d1, d2 := "d1", "d2"

	for i, l := range []*models.Load{
		{ID: "a", Status: models.StatusScheduled, DriverID: &d1},
		{ID: "b", Status: models.StatusCompleted, DriverID: &d1},
		{ID: "c", Status: models.StatusPickedUp, DriverID: &d1},
		{ID: "d", Status: models.StatusScheduled, DriverID: &d2},
		{ID: "e", Status: models.StatusNew},
	} {
		l.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := s.Load().Create(ctx, l, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Load().ListByDriver(ctx, "d1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Errorf("got %d loads, want [c a]", len(got))
	}

	open, err := s.Load().ListByStatus(ctx, models.StatusNew, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].ID != "e" {
		t.Errorf("open = %v", open)
	}
}

func TestGetByTelegramChat(t *testing.T) {
	ctx := context.Background()
	s := New()
	chat := int64(42)
	if err := s.Contact().Upsert(ctx, &models.Contact{PartyType: models.UserDriver, PartyID: "d1", TelegramChatID: &chat}); err != nil {
		t.Fatal(err)
	}

	c, err := s.Contact().GetByTelegramChat(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if c.PartyID != "d1" {
		t.Errorf("party = %s", c.PartyID)
	}
	if _, err := s.Contact().GetByTelegramChat(ctx, 7); !errs.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
}
