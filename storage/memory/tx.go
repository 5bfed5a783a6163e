package memory

import (
	"context"
	"time"

	"medcourier/pkg/errs"
	"medcourier/pkg/models"
	"medcourier/storage"
)

type fleetChange struct {
	fleetID *string
	role    models.FleetRole
}

// tx stages writes and applies them on commit, so readers outside the
// transaction never observe half of a redemption.
type tx struct {
	s          *Store
	inviteUses map[string]int
	fleet      map[string]fleetChange
}

func (s *Store) RunTx(ctx context.Context, fn func(tx storage.ITx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{s: s, inviteUses: make(map[string]int), fleet: make(map[string]fleetChange)}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for code, n := range t.inviteUses {
		s.invites[code].UsedCount += n
	}
	for id, c := range t.fleet {
		d := s.drivers[id]
		d.FleetID = c.fleetID
		d.FleetRole = c.role
	}
	return nil
}

func (t *tx) invite(code string) (*models.FleetInvite, bool) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	i, ok := t.s.invites[code]
	if !ok {
		return nil, false
	}
	c := *i
	c.UsedCount += t.inviteUses[code]
	return &c, true
}

func (t *tx) driver(id string) (*models.Driver, bool) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	d, ok := t.s.drivers[id]
	if !ok {
		return nil, false
	}
	c := *d
	if ch, ok := t.fleet[id]; ok {
		c.FleetID = ch.fleetID
		c.FleetRole = ch.role
	}
	return &c, true
}

func (t *tx) ConsumeInvite(ctx context.Context, code string, now time.Time) (*models.FleetInvite, bool, error) {
	i, ok := t.invite(code)
	if !ok || i.Exhausted() || i.Expired(now) {
		return nil, false, nil
	}
	t.inviteUses[code]++
	i.UsedCount++
	return i, true, nil
}

func (t *tx) GetInvite(ctx context.Context, code string) (*models.FleetInvite, error) {
	i, ok := t.invite(code)
	if !ok {
		return nil, errs.NotFound("invite", code)
	}
	return i, nil
}

func (t *tx) JoinFleet(ctx context.Context, driverID, fleetID string, role models.FleetRole) (bool, error) {
	d, ok := t.driver(driverID)
	if !ok || d.FleetRole != models.FleetRoleIndependent {
		return false, nil
	}
	f := fleetID
	t.fleet[driverID] = fleetChange{fleetID: &f, role: role}
	return true, nil
}

func (t *tx) LeaveFleet(ctx context.Context, driverID string) (bool, error) {
	d, ok := t.driver(driverID)
	if !ok || d.FleetRole == models.FleetRoleIndependent || d.FleetRole == models.FleetRoleOwner {
		return false, nil
	}
	t.fleet[driverID] = fleetChange{role: models.FleetRoleIndependent}
	return true, nil
}

func (t *tx) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	d, ok := t.driver(id)
	if !ok {
		return nil, errs.NotFound("driver", id)
	}
	return d, nil
}
