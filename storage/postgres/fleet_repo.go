package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/storage"
)

const inviteColumns = `code, fleet_id, role, max_uses, used_count, expires_at, created_by, created_at`

type fleetRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewFleetRepo(db *pgxpool.Pool, log logger.ILogger) storage.IFleetStorage {
	return &fleetRepo{db: db, log: log}
}

func scanInvite(row pgx.Row) (*models.FleetInvite, error) {
	var i models.FleetInvite
	if err := row.Scan(&i.Code, &i.FleetID, &i.Role, &i.MaxUses, &i.UsedCount, &i.ExpiresAt, &i.CreatedBy, &i.CreatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func getInvite(ctx context.Context, db querier, code string) (*models.FleetInvite, error) {
	i, err := scanInvite(db.QueryRow(ctx, `SELECT `+inviteColumns+` FROM fleet_invites WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("invite", code)
	}
	return i, err
}

// Create inserts the fleet and moves the owner into it in one transaction.
func (r *fleetRepo) Create(ctx context.Context, f *models.Fleet) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `INSERT INTO fleets (id, name, owner_driver_id) VALUES ($1, $2, $3) RETURNING created_at`,
		f.ID, f.Name, f.OwnerDriverID).Scan(&f.CreatedAt)
	if err != nil {
		r.log.Error("failed to create fleet", logger.String("fleet_id", f.ID), logger.Error(err))
		return fmt.Errorf("insert fleet: %w", err)
	}

	res, err := tx.Exec(ctx, `
		UPDATE drivers SET fleet_id = $1, fleet_role = 'OWNER', updated_at = NOW()
		WHERE id = $2 AND fleet_role = 'INDEPENDENT'
	`, f.ID, f.OwnerDriverID)
	if err != nil {
		return fmt.Errorf("assign fleet owner: %w", err)
	}
	if res.RowsAffected() == 0 {
		if _, err := getDriver(ctx, tx, f.OwnerDriverID); err != nil {
			return err
		}
		return errs.Validation(errs.CodeAlreadyInFleet, "driver %s already belongs to a fleet", f.OwnerDriverID)
	}

	return tx.Commit(ctx)
}

func (r *fleetRepo) GetByID(ctx context.Context, id string) (*models.Fleet, error) {
	var f models.Fleet
	err := r.db.QueryRow(ctx, `SELECT id, name, owner_driver_id, created_at FROM fleets WHERE id = $1`, id).
		Scan(&f.ID, &f.Name, &f.OwnerDriverID, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("fleet", id)
		}
		return nil, err
	}
	return &f, nil
}

func (r *fleetRepo) CreateInvite(ctx context.Context, i *models.FleetInvite) error {
	query := `
		INSERT INTO fleet_invites (code, fleet_id, role, max_uses, used_count, expires_at, created_by)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, i.Code, i.FleetID, i.Role, i.MaxUses, i.ExpiresAt, i.CreatedBy).Scan(&i.CreatedAt)
	if err != nil {
		r.log.Error("failed to create invite", logger.String("fleet_id", i.FleetID), logger.Error(err))
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

func (r *fleetRepo) GetInvite(ctx context.Context, code string) (*models.FleetInvite, error) {
	return getInvite(ctx, r.db, code)
}

// txRepo implements storage.ITx over an open transaction.
type txRepo struct {
	db  pgx.Tx
	log logger.ILogger
}

func (t *txRepo) ConsumeInvite(ctx context.Context, code string, now time.Time) (*models.FleetInvite, bool, error) {
	query := `
		UPDATE fleet_invites SET used_count = used_count + 1
		WHERE code = $1
			AND (max_uses IS NULL OR used_count < max_uses)
			AND (expires_at IS NULL OR expires_at > $2)
		RETURNING ` + inviteColumns
	i, err := scanInvite(t.db.QueryRow(ctx, query, code, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		t.log.Error("failed to consume invite", logger.Error(err))
		return nil, false, fmt.Errorf("consume invite: %w", err)
	}
	return i, true, nil
}

func (t *txRepo) GetInvite(ctx context.Context, code string) (*models.FleetInvite, error) {
	return getInvite(ctx, t.db, code)
}

func (t *txRepo) JoinFleet(ctx context.Context, driverID, fleetID string, role models.FleetRole) (bool, error) {
	res, err := t.db.Exec(ctx, `
		UPDATE drivers SET fleet_id = $1, fleet_role = $2, updated_at = NOW()
		WHERE id = $3 AND fleet_role = 'INDEPENDENT'
	`, fleetID, role, driverID)
	if err != nil {
		return false, fmt.Errorf("join fleet: %w", err)
	}
	return res.RowsAffected() == 1, nil
}

func (t *txRepo) LeaveFleet(ctx context.Context, driverID string) (bool, error) {
	res, err := t.db.Exec(ctx, `
		UPDATE drivers SET fleet_id = NULL, fleet_role = 'INDEPENDENT', updated_at = NOW()
		WHERE id = $1 AND fleet_role IN ('ADMIN', 'DRIVER')
	`, driverID)
	if err != nil {
		return false, fmt.Errorf("leave fleet: %w", err)
	}
	return res.RowsAffected() == 1, nil
}

func (t *txRepo) GetDriver(ctx context.Context, id string) (*models.Driver, error) {
	return getDriver(ctx, t.db, id)
}
