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

type contactRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewContactRepo(db *pgxpool.Pool, log logger.ILogger) storage.IContactStorage {
	return &contactRepo{db: db, log: log}
}

func (r *contactRepo) Upsert(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (party_type, party_id, name, telegram_chat_id, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (party_type, party_id) DO UPDATE
		SET name = EXCLUDED.name, telegram_chat_id = EXCLUDED.telegram_chat_id,
		    email = EXCLUDED.email, phone = EXCLUDED.phone
	`
	_, err := r.db.Exec(ctx, query, c.PartyType, c.PartyID, c.Name, c.TelegramChatID, c.Email, c.Phone)
	if err != nil {
		r.log.Error("failed to upsert contact", logger.String("party_id", c.PartyID), logger.Error(err))
	}
	return err
}

func (r *contactRepo) Get(ctx context.Context, partyType models.UserType, partyID string) (*models.Contact, error) {
	var c models.Contact
	query := `SELECT party_type, party_id, name, telegram_chat_id, email, phone FROM contacts WHERE party_type = $1 AND party_id = $2`
	err := r.db.QueryRow(ctx, query, partyType, partyID).Scan(&c.PartyType, &c.PartyID, &c.Name, &c.TelegramChatID, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("contact", string(partyType)+"/"+partyID)
		}
		return nil, err
	}
	return &c, nil
}

func (r *contactRepo) GetByTelegramChat(ctx context.Context, chatID int64) (*models.Contact, error) {
	var c models.Contact
	query := `SELECT party_type, party_id, name, telegram_chat_id, email, phone FROM contacts WHERE telegram_chat_id = $1 LIMIT 1`
	err := r.db.QueryRow(ctx, query, chatID).Scan(&c.PartyType, &c.PartyID, &c.Name, &c.TelegramChatID, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.NotFound("contact", fmt.Sprintf("telegram/%d", chatID))
		}
		return nil, err
	}
	return &c, nil
}
