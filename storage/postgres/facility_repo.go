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

type facilityRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewFacilityRepo(db *pgxpool.Pool, log logger.ILogger) storage.IFacilityStorage {
	return &facilityRepo{db: db, log: log}
}

func (r *facilityRepo) GetByID(ctx context.Context, id string) (*models.Facility, error) {
	var f models.Facility
	query := `SELECT id, name, address, created_at FROM facilities WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(&f.ID, &f.Name, &f.Address, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("facility", id)
		}
		return nil, err
	}
	return &f, nil
}

func (r *facilityRepo) Create(ctx context.Context, f *models.Facility) error {
	query := `INSERT INTO facilities (id, name, address) VALUES ($1, $2, $3) RETURNING created_at`
	return r.db.QueryRow(ctx, query, f.ID, f.Name, f.Address).Scan(&f.CreatedAt)
}
