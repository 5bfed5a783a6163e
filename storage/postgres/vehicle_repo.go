package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/storage"
)

type vehicleRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewVehicleRepo(db *pgxpool.Pool, log logger.ILogger) storage.IVehicleStorage {
	return &vehicleRepo{db: db, log: log}
}

func (r *vehicleRepo) Create(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, driver_id, license_plate, registration_expiry, insurance_expiry, is_active, current_odometer)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query, v.ID, v.DriverID, v.LicensePlate, v.RegistrationExpiry, v.InsuranceExpiry, v.IsActive, v.CurrentOdometer)
	if err != nil {
		r.log.Error("failed to create vehicle", logger.String("vehicle_id", v.ID), logger.Error(err))
	}
	return err
}

func (r *vehicleRepo) GetByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	query := `SELECT id, driver_id, license_plate, registration_expiry, insurance_expiry, is_active, current_odometer FROM vehicles WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.DriverID, &v.LicensePlate, &v.RegistrationExpiry, &v.InsuranceExpiry, &v.IsActive, &v.CurrentOdometer,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("vehicle", id)
		}
		r.log.Error("failed to get vehicle by id", logger.String("vehicle_id", id), logger.Error(err))
		return nil, err
	}
	return &v, nil
}

func (r *vehicleRepo) GetByDriver(ctx context.Context, driverID string) ([]*models.Vehicle, error) {
	query := `SELECT id, driver_id, license_plate, registration_expiry, insurance_expiry, is_active, current_odometer
		FROM vehicles WHERE driver_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, driverID)
	if err != nil {
		r.log.Error("failed to get driver vehicles", logger.String("driver_id", driverID), logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.DriverID, &v.LicensePlate, &v.RegistrationExpiry, &v.InsuranceExpiry, &v.IsActive, &v.CurrentOdometer); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, &v)
	}
	return vehicles, rows.Err()
}
