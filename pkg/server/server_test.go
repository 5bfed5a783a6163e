package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"medcourier/pkg/distance"
	"medcourier/pkg/lifecycle"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/service"
	"medcourier/storage/memory"
)

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("connection refused") }

func setup(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	_ = store.Facility().Create(ctx, &models.Facility{ID: "p1", Address: "1 Main St"})
	_ = store.Facility().Create(ctx, &models.Facility{ID: "p2", Address: "9 Elm St"})

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc, err := service.New(store, logger.NewNop(), service.Options{
		Distance: distance.Static{{"1 Main St", "9 Elm St"}: 20},
		Clock:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := svc.Load().Create(ctx, models.AuthContext{UserID: "s1", UserType: models.UserShipper}, lifecycle.NewLoad{
		PickupFacilityID: "p1", DropoffFacilityID: "p2", ServiceType: "STAT", DistanceMiles: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	return NewRouter(svc, store, logger.NewNop()), out.Load.ID
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestRoutes(t *testing.T) {
	r, id := setup(t)

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{"health", "/healthz", http.StatusOK, `"ok"`},
		{"metrics", "/metrics", http.StatusOK, "medcourier_loads_created_total"},
		{"load", "/api/loads/" + id, http.StatusOK, `"allowed_actions":["request_quote"`},
		{"events", "/api/loads/" + id + "/events", http.StatusOK, `"LOAD_CREATED"`},
		{"missing load", "/api/loads/nope/events", http.StatusNotFound, "not found"},
		{"transitions", "/api/transitions", http.StatusOK, `"restore_denied"`},
		{"quote by facilities", "/api/quote?pickup=p1&dropoff=p2&service_type=stat", http.StatusOK, `"total_rate":90`},
		{"quote by distance", "/api/quote?distance=10", http.StatusOK, `"total_rate":22.5`},
		{"bad distance", "/api/quote?distance=far", http.StatusUnprocessableEntity, "invalid_input"},
		{"bad tier", "/api/quote?distance=3&service_type=bike", http.StatusUnprocessableEntity, "unknown service type"},
		{"bad time", "/api/quote?distance=3&ready_time=noon", http.StatusUnprocessableEntity, "RFC 3339"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, r, tt.path)
			if w.Code != tt.status {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %s does not contain %s", w.Body.String(), tt.contains)
			}
		})
	}
}

func TestEventsJSON(t *testing.T) {
	r, id := setup(t)
	w := get(t, r, "/api/loads/"+id+"/events")
	var events []models.TrackingEvent
	if err := json.Unmarshal(w.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].LoadID != id || events[0].ToStatus != models.StatusNew {
		t.Errorf("events = %+v", events)
	}
}

func TestHealthDown(t *testing.T) {
	r := NewRouter(nil, downDB{}, logger.NewNop())
	w := get(t, r, "/healthz")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", w.Code)
	}
}

func TestRunStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, "127.0.0.1:0", http.NotFoundHandler(), logger.NewNop()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
