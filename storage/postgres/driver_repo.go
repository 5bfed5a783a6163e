package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/storage"
)

const driverColumns = `id, name, status, license_expiry, hazmat_cert_expiry, hazmat_training_at,
	fleet_id, fleet_role, minimum_rate_per_mile, created_at, updated_at`

type driverRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewDriverRepo(db *pgxpool.Pool, log logger.ILogger) storage.IDriverStorage {
	return &driverRepo{db: db, log: log}
}

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var d models.Driver
	err := row.Scan(&d.ID, &d.Name, &d.Status, &d.LicenseExpiry, &d.HazmatCertExpiry, &d.HazmatTrainingAt,
		&d.FleetID, &d.FleetRole, &d.MinimumRatePerMile, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func getDriver(ctx context.Context, db querier, id string) (*models.Driver, error) {
	d, err := scanDriver(db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFound("driver", id)
	}
	return d, err
}

func (r *driverRepo) Create(ctx context.Context, d *models.Driver) error {
	query := `
		INSERT INTO drivers (id, name, status, license_expiry, hazmat_cert_expiry, hazmat_training_at,
			fleet_id, fleet_role, minimum_rate_per_mile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		d.ID, d.Name, d.Status, d.LicenseExpiry, d.HazmatCertExpiry, d.HazmatTrainingAt,
		d.FleetID, d.FleetRole, d.MinimumRatePerMile,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		r.log.Error("failed to create driver", logger.String("driver_id", d.ID), logger.Error(err))
		return fmt.Errorf("insert driver: %w", err)
	}
	return nil
}

func (r *driverRepo) GetByID(ctx context.Context, id string) (*models.Driver, error) {
	d, err := getDriver(ctx, r.db, id)
	if err != nil && !errs.IsNotFound(err) {
		r.log.Error("failed to get driver by id", logger.String("driver_id", id), logger.Error(err))
	}
	return d, err
}

func (r *driverRepo) UpdateStatus(ctx context.Context, id string, status models.DriverStatus) error {
	res, err := r.db.Exec(ctx, `UPDATE drivers SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return errs.NotFound("driver", id)
	}
	return nil
}

func (r *driverRepo) GetByFleet(ctx context.Context, fleetID string) ([]*models.Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE fleet_id = $1 ORDER BY id`, fleetID)
	if err != nil {
		r.log.Error("failed to get fleet drivers", logger.String("fleet_id", fleetID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var drivers []*models.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}
