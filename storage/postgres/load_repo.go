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

const loadColumns = `id, status, shipper_id, driver_id, vehicle_id, pickup_facility_id, dropoff_facility_id,
	service_type, distance_miles, ready_time, delivery_deadline, requires_hazmat, created_by_driver,
	quote_amount, rate_adjusted_for_minimum, driver_quote_amount, driver_quote_expires_at,
	quoted_at, assigned_at, accepted_by_driver_at, quote_accepted_at, picked_up_at, delivered_at,
	completed_at, cancelled_at, driver_denied_at,
	cancellation_reason, cancellation_billing_rule, cancelled_by, denial_reason, denial_notes,
	payee_type, payee_id, driver_pay_amount, created_at, updated_at`

type loadRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewLoadRepo(db *pgxpool.Pool, log logger.ILogger) storage.ILoadStorage {
	return &loadRepo{db: db, log: log}
}

func scanLoad(row pgx.Row) (*models.Load, error) {
	var l models.Load
	err := row.Scan(
		&l.ID, &l.Status, &l.ShipperID, &l.DriverID, &l.VehicleID, &l.PickupFacilityID, &l.DropoffFacilityID,
		&l.ServiceType, &l.DistanceMiles, &l.ReadyTime, &l.DeliveryDeadline, &l.RequiresHazmat, &l.CreatedByDriver,
		&l.QuoteAmount, &l.RateAdjustedForMinimum, &l.DriverQuoteAmount, &l.DriverQuoteExpiresAt,
		&l.QuotedAt, &l.AssignedAt, &l.AcceptedByDriverAt, &l.QuoteAcceptedAt, &l.PickedUpAt, &l.DeliveredAt,
		&l.CompletedAt, &l.CancelledAt, &l.DriverDeniedAt,
		&l.CancellationReason, &l.CancellationBillingRule, &l.CancelledBy, &l.DenialReason, &l.DenialNotes,
		&l.PayeeType, &l.PayeeID, &l.DriverPayAmount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *loadRepo) Create(ctx context.Context, load *models.Load, event *models.TrackingEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO loads (` + loadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36)`
	_, err = tx.Exec(ctx, query,
		load.ID, load.Status, load.ShipperID, load.DriverID, load.VehicleID, load.PickupFacilityID, load.DropoffFacilityID,
		load.ServiceType, load.DistanceMiles, load.ReadyTime, load.DeliveryDeadline, load.RequiresHazmat, load.CreatedByDriver,
		load.QuoteAmount, load.RateAdjustedForMinimum, load.DriverQuoteAmount, load.DriverQuoteExpiresAt,
		load.QuotedAt, load.AssignedAt, load.AcceptedByDriverAt, load.QuoteAcceptedAt, load.PickedUpAt, load.DeliveredAt,
		load.CompletedAt, load.CancelledAt, load.DriverDeniedAt,
		load.CancellationReason, load.CancellationBillingRule, load.CancelledBy, load.DenialReason, load.DenialNotes,
		load.PayeeType, load.PayeeID, load.DriverPayAmount, load.CreatedAt, load.UpdatedAt,
	)
	if err != nil {
		r.log.Error("failed to create load", logger.String("load_id", load.ID), logger.Error(err))
		return fmt.Errorf("insert load: %w", err)
	}

	if event != nil {
		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *loadRepo) GetByID(ctx context.Context, id string) (*models.Load, error) {
	query := `SELECT ` + loadColumns + ` FROM loads WHERE id = $1`
	l, err := scanLoad(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("load", id)
		}
		r.log.Error("failed to get load by id", logger.String("load_id", id), logger.Error(err))
		return nil, err
	}
	return l, nil
}

// Transition applies w with UPDATE ... WHERE id AND status. Zero affected rows
// means another writer got there first or the load does not exist; the
// current status is re-read to tell the two apart.
func (r *loadRepo) Transition(ctx context.Context, w storage.TransitionWrite) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	l := w.Load
	query := `
		UPDATE loads SET
			status = $3, driver_id = $4, vehicle_id = $5, service_type = $6, distance_miles = $7,
			ready_time = $8, delivery_deadline = $9,
			quote_amount = $10, rate_adjusted_for_minimum = $11, driver_quote_amount = $12, driver_quote_expires_at = $13,
			quoted_at = $14, assigned_at = $15, accepted_by_driver_at = $16, quote_accepted_at = $17,
			picked_up_at = $18, delivered_at = $19, completed_at = $20, cancelled_at = $21, driver_denied_at = $22,
			cancellation_reason = $23, cancellation_billing_rule = $24, cancelled_by = $25,
			denial_reason = $26, denial_notes = $27,
			payee_type = $28, payee_id = $29, driver_pay_amount = $30, updated_at = $31
		WHERE id = $1 AND status = $2
	`
	res, err := tx.Exec(ctx, query,
		l.ID, w.Expected,
		l.Status, l.DriverID, l.VehicleID, l.ServiceType, l.DistanceMiles,
		l.ReadyTime, l.DeliveryDeadline,
		l.QuoteAmount, l.RateAdjustedForMinimum, l.DriverQuoteAmount, l.DriverQuoteExpiresAt,
		l.QuotedAt, l.AssignedAt, l.AcceptedByDriverAt, l.QuoteAcceptedAt,
		l.PickedUpAt, l.DeliveredAt, l.CompletedAt, l.CancelledAt, l.DriverDeniedAt,
		l.CancellationReason, l.CancellationBillingRule, l.CancelledBy,
		l.DenialReason, l.DenialNotes,
		l.PayeeType, l.PayeeID, l.DriverPayAmount, l.UpdatedAt,
	)
	if err != nil {
		r.log.Error("failed to transition load", logger.String("load_id", l.ID), logger.Error(err))
		return fmt.Errorf("update load: %w", err)
	}
	if res.RowsAffected() == 0 {
		var current models.LoadStatus
		err := tx.QueryRow(ctx, `SELECT status FROM loads WHERE id = $1`, l.ID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return errs.NotFound("load", l.ID)
		}
		if err != nil {
			return fmt.Errorf("read load status: %w", err)
		}
		return &errs.ValidationError{
			Code:     errs.CodeStaleState,
			Reason:   "load " + l.ID + " changed concurrently",
			Expected: []string{string(w.Expected)},
			Actual:   string(current),
		}
	}

	if w.Event != nil {
		if err := insertEvent(ctx, tx, w.Event); err != nil {
			return err
		}
	}

	if w.DriverStatus != nil {
		res, err := tx.Exec(ctx, `UPDATE drivers SET status = $1, updated_at = NOW() WHERE id = $2`,
			w.DriverStatus.Status, w.DriverStatus.DriverID)
		if err != nil {
			return fmt.Errorf("update driver status: %w", err)
		}
		if res.RowsAffected() == 0 {
			return errs.NotFound("driver", w.DriverStatus.DriverID)
		}
	}

	return tx.Commit(ctx)
}

func insertEvent(ctx context.Context, db querier, e *models.TrackingEvent) error {
	query := `
		INSERT INTO tracking_events (id, load_id, code, label, description, actor_id, actor_type, from_status, to_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.Exec(ctx, query,
		e.ID, e.LoadID, e.Code, e.Label, e.Description, e.ActorID, e.ActorType, e.FromStatus, e.ToStatus, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

func (r *loadRepo) AppendEvent(ctx context.Context, event *models.TrackingEvent) error {
	if err := insertEvent(ctx, r.db, event); err != nil {
		r.log.Error("failed to append tracking event", logger.String("load_id", event.LoadID), logger.Error(err))
		return err
	}
	return nil
}

func (r *loadRepo) Events(ctx context.Context, loadID string) ([]*models.TrackingEvent, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loads WHERE id = $1)`, loadID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, errs.NotFound("load", loadID)
	}

	query := `
		SELECT id, load_id, code, label, description, actor_id, actor_type, from_status, to_status, created_at
		FROM tracking_events
		WHERE load_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, loadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.TrackingEvent
	for rows.Next() {
		var e models.TrackingEvent
		if err := rows.Scan(&e.ID, &e.LoadID, &e.Code, &e.Label, &e.Description, &e.ActorID, &e.ActorType,
			&e.FromStatus, &e.ToStatus, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *loadRepo) ListExpiredDriverQuotes(ctx context.Context, now time.Time, limit int) ([]*models.Load, error) {
	query := `SELECT ` + loadColumns + ` FROM loads
		WHERE status = $1 AND driver_quote_expires_at IS NOT NULL AND driver_quote_expires_at <= $2
		ORDER BY driver_quote_expires_at ASC
		LIMIT $3`
	return r.list(ctx, query, models.StatusDriverQuoteSubmitted, now, limit)
}

func (r *loadRepo) ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.Load, error) {
	query := `SELECT ` + loadColumns + ` FROM loads
		WHERE driver_id = $1 AND status NOT IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT $5`
	return r.list(ctx, query, driverID, models.StatusCompleted, models.StatusCancelled, models.StatusDenied, limitArg(limit))
}

func (r *loadRepo) ListByStatus(ctx context.Context, status models.LoadStatus, limit int) ([]*models.Load, error) {
	query := `SELECT ` + loadColumns + ` FROM loads WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, status, limitArg(limit))
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func (r *loadRepo) list(ctx context.Context, query string, args ...any) ([]*models.Load, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loads []*models.Load
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		loads = append(loads, l)
	}
	return loads, rows.Err()
}

func (r *loadRepo) CountByStatus(ctx context.Context) (map[models.LoadStatus]int, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM loads GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[models.LoadStatus]int)
	for rows.Next() {
		var (
			status models.LoadStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
