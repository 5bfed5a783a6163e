package models

import "time"

type Fleet struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	OwnerDriverID string    `json:"owner_driver_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type FleetInvite struct {
	Code      string     `json:"code"`
	FleetID   string     `json:"fleet_id"`
	Role      FleetRole  `json:"role"`
	MaxUses   *int       `json:"max_uses"`
	UsedCount int        `json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

func (i *FleetInvite) Exhausted() bool {
	return i.MaxUses != nil && i.UsedCount >= *i.MaxUses
}

func (i *FleetInvite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}
