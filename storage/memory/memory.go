// Package memory is a process-local IStorage. It honours the same
// conditional-write contract as the postgres store and backs the package
// tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"medcourier/pkg/errs"
	"medcourier/pkg/models"
	"medcourier/storage"
)

type Store struct {
	mu         sync.RWMutex
	loads      map[string]*models.Load
	events     map[string][]*models.TrackingEvent
	drivers    map[string]*models.Driver
	vehicles   map[string]*models.Vehicle
	fleets     map[string]*models.Fleet
	invites    map[string]*models.FleetInvite
	facilities map[string]*models.Facility
	contacts   map[string]*models.Contact

	// txMu serializes RunTx calls.
	txMu sync.Mutex
}

func New() *Store {
	return &Store{
		loads:      make(map[string]*models.Load),
		events:     make(map[string][]*models.TrackingEvent),
		drivers:    make(map[string]*models.Driver),
		vehicles:   make(map[string]*models.Vehicle),
		fleets:     make(map[string]*models.Fleet),
		invites:    make(map[string]*models.FleetInvite),
		facilities: make(map[string]*models.Facility),
		contacts:   make(map[string]*models.Contact),
	}
}

var _ storage.IStorage = (*Store)(nil)

func (s *Store) Load() storage.ILoadStorage         { return loadRepo{s} }
func (s *Store) Driver() storage.IDriverStorage     { return driverRepo{s} }
func (s *Store) Vehicle() storage.IVehicleStorage   { return vehicleRepo{s} }
func (s *Store) Fleet() storage.IFleetStorage       { return fleetRepo{s} }
func (s *Store) Facility() storage.IFacilityStorage { return facilityRepo{s} }
func (s *Store) Contact() storage.IContactStorage   { return contactRepo{s} }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close()                         {}

type loadRepo struct{ s *Store }

func (r loadRepo) Create(ctx context.Context, load *models.Load, event *models.TrackingEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loads[load.ID]; ok {
		return errs.Validation(errs.CodeInvalidInput, "load %s already exists", load.ID)
	}
	r.s.loads[load.ID] = load.Clone()
	if event != nil {
		e := *event
		r.s.events[load.ID] = append(r.s.events[load.ID], &e)
	}
	return nil
}

func (r loadRepo) GetByID(ctx context.Context, id string) (*models.Load, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.loads[id]
	if !ok {
		return nil, errs.NotFound("load", id)
	}
	return l.Clone(), nil
}

func (r loadRepo) Transition(ctx context.Context, w storage.TransitionWrite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.loads[w.Load.ID]
	if !ok {
		return errs.NotFound("load", w.Load.ID)
	}
	if cur.Status != w.Expected {
		return &errs.ValidationError{
			Code:     errs.CodeStaleState,
			Reason:   "load " + w.Load.ID + " changed concurrently",
			Expected: []string{string(w.Expected)},
			Actual:   string(cur.Status),
		}
	}
	if w.DriverStatus != nil {
		if _, ok := r.s.drivers[w.DriverStatus.DriverID]; !ok {
			return errs.NotFound("driver", w.DriverStatus.DriverID)
		}
	}

	r.s.loads[w.Load.ID] = w.Load.Clone()
	if w.Event != nil {
		e := *w.Event
		r.s.events[w.Load.ID] = append(r.s.events[w.Load.ID], &e)
	}
	if w.DriverStatus != nil {
		r.s.drivers[w.DriverStatus.DriverID].Status = w.DriverStatus.Status
	}
	return nil
}

func (r loadRepo) AppendEvent(ctx context.Context, event *models.TrackingEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.loads[event.LoadID]; !ok {
		return errs.NotFound("load", event.LoadID)
	}
	e := *event
	r.s.events[event.LoadID] = append(r.s.events[event.LoadID], &e)
	return nil
}

func (r loadRepo) Events(ctx context.Context, loadID string) ([]*models.TrackingEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if _, ok := r.s.loads[loadID]; !ok {
		return nil, errs.NotFound("load", loadID)
	}
	out := make([]*models.TrackingEvent, 0, len(r.s.events[loadID]))
	for _, e := range r.s.events[loadID] {
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (r loadRepo) ListExpiredDriverQuotes(ctx context.Context, now time.Time, limit int) ([]*models.Load, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Load
	for _, l := range r.s.loads {
		if l.Status != models.StatusDriverQuoteSubmitted || l.DriverQuoteExpiresAt == nil {
			continue
		}
		if l.DriverQuoteExpiresAt.After(now) {
			continue
		}
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverQuoteExpiresAt.Before(*out[j].DriverQuoteExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r loadRepo) ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.Load, error) {
	return r.list(limit, func(l *models.Load) bool {
		return l.DriverID != nil && *l.DriverID == driverID && !l.Status.Terminal()
	}), nil
}

func (r loadRepo) ListByStatus(ctx context.Context, status models.LoadStatus, limit int) ([]*models.Load, error) {
	return r.list(limit, func(l *models.Load) bool { return l.Status == status }), nil
}

func (r loadRepo) list(limit int, keep func(*models.Load) bool) []*models.Load {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Load
	for _, l := range r.s.loads {
		if keep(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r loadRepo) CountByStatus(ctx context.Context) (map[models.LoadStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[models.LoadStatus]int)
	for _, l := range r.s.loads {
		out[l.Status]++
	}
	return out, nil
}

type driverRepo struct{ s *Store }

func (r driverRepo) Create(ctx context.Context, driver *models.Driver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := *driver
	r.s.drivers[driver.ID] = &d
	return nil
}

func (r driverRepo) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return nil, errs.NotFound("driver", id)
	}
	c := *d
	return &c, nil
}

func (r driverRepo) UpdateStatus(ctx context.Context, id string, status models.DriverStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[id]
	if !ok {
		return errs.NotFound("driver", id)
	}
	d.Status = status
	return nil
}

func (r driverRepo) GetByFleet(ctx context.Context, fleetID string) ([]*models.Driver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Driver
	for _, d := range r.s.drivers {
		if d.FleetID != nil && *d.FleetID == fleetID {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type vehicleRepo struct{ s *Store }

func (r vehicleRepo) Create(ctx context.Context, vehicle *models.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v := *vehicle
	r.s.vehicles[vehicle.ID] = &v
	return nil
}

func (r vehicleRepo) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	v, ok := r.s.vehicles[id]
	if !ok {
		return nil, errs.NotFound("vehicle", id)
	}
	c := *v
	return &c, nil
}

func (r vehicleRepo) GetByDriver(ctx context.Context, driverID string) ([]*models.Vehicle, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.Vehicle
	for _, v := range r.s.vehicles {
		if v.DriverID == driverID {
			c := *v
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fleetRepo struct{ s *Store }

func (r fleetRepo) Create(ctx context.Context, fleet *models.Fleet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	owner, ok := r.s.drivers[fleet.OwnerDriverID]
	if !ok {
		return errs.NotFound("driver", fleet.OwnerDriverID)
	}
	if owner.FleetRole != models.FleetRoleIndependent {
		return errs.Validation(errs.CodeAlreadyInFleet, "driver %s already belongs to a fleet", fleet.OwnerDriverID)
	}
	f := *fleet
	r.s.fleets[fleet.ID] = &f
	id := fleet.ID
	owner.FleetID = &id
	owner.FleetRole = models.FleetRoleOwner
	return nil
}

func (r fleetRepo) GetByID(ctx context.Context, id string) (*models.Fleet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.fleets[id]
	if !ok {
		return nil, errs.NotFound("fleet", id)
	}
	c := *f
	return &c, nil
}

func (r fleetRepo) CreateInvite(ctx context.Context, invite *models.FleetInvite) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invites[invite.Code]; ok {
		return errs.Validation(errs.CodeInvalidInput, "invite code %s already exists", invite.Code)
	}
	i := *invite
	r.s.invites[invite.Code] = &i
	return nil
}

func (r fleetRepo) GetInvite(ctx context.Context, code string) (*models.FleetInvite, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	i, ok := r.s.invites[code]
	if !ok {
		return nil, errs.NotFound("invite", code)
	}
	c := *i
	return &c, nil
}

type facilityRepo struct{ s *Store }

func (r facilityRepo) Create(ctx context.Context, facility *models.Facility) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f := *facility
	r.s.facilities[facility.ID] = &f
	return nil
}

func (r facilityRepo) GetByID(ctx context.Context, id string) (*models.Facility, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.facilities[id]
	if !ok {
		return nil, errs.NotFound("facility", id)
	}
	c := *f
	return &c, nil
}

type contactRepo struct{ s *Store }

func contactKey(t models.UserType, id string) string { return string(t) + "/" + id }

func (r contactRepo) Upsert(ctx context.Context, contact *models.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *contact
	r.s.contacts[contactKey(contact.PartyType, contact.PartyID)] = &c
	return nil
}

func (r contactRepo) Get(ctx context.Context, partyType models.UserType, partyID string) (*models.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contacts[contactKey(partyType, partyID)]
	if !ok {
		return nil, errs.NotFound("contact", contactKey(partyType, partyID))
	}
	out := *c
	return &out, nil
}

func (r contactRepo) GetByTelegramChat(ctx context.Context, chatID int64) (*models.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.contacts {
		if c.TelegramChatID != nil && *c.TelegramChatID == chatID {
			out := *c
			return &out, nil
		}
	}
	return nil, errs.NotFound("contact", fmt.Sprintf("telegram/%d", chatID))
}
