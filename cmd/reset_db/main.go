package main

import (
	"context"
	"fmt"

	"medcourier/config"
	"medcourier/pkg/logger"
	"medcourier/storage/postgres"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName)
	pg, err := postgres.New(context.Background(), cfg, log)

	if err != nil {
		panic(err)
	}
	defer pg.Close()

	// Loads, their history and the fleet graph are wiped. Facilities and
	// contacts are reference data and stay.
	_, err = pg.GetPool().Exec(context.Background(),
		"TRUNCATE TABLE tracking_events, loads, fleet_invites, vehicles, drivers, fleets CASCADE")
	if err != nil {
		log.Error(fmt.Sprintf("Failed to truncate tables: %v", err))
	} else {
		log.Info("Successfully truncated loads, tracking_events and fleet tables.")
	}
}
