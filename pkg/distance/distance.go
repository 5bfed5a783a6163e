// Package distance looks up road distance between two addresses.
package distance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"googlemaps.github.io/maps"

	"medcourier/pkg/metrics"
)

const metersPerMile = 1609.344

var ErrNoRoute = errors.New("no route between origin and destination")

type Provider interface {
	DistanceMiles(ctx context.Context, origin, destination string) (float64, error)
}

type Google struct {
	client *maps.Client
}

// NewGoogle builds a Distance Matrix client. baseURL is empty in production.
func NewGoogle(apiKey, baseURL string) (*Google, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("maps client: %w", err)
	}
	return &Google{client: c}, nil
}

func (g *Google) DistanceMiles(ctx context.Context, origin, destination string) (float64, error) {
	start := time.Now()
	miles, err := g.lookup(ctx, origin, destination)
	metrics.DistanceLatency.Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.DistanceLookupsTotal.WithLabelValues(result).Inc()
	return miles, err
}

func (g *Google) lookup(ctx context.Context, origin, destination string) (float64, error) {
	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsImperial,
	})
	if err != nil {
		return 0, fmt.Errorf("distance matrix: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, ErrNoRoute
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("%w: %s", ErrNoRoute, el.Status)
	}
	return float64(el.Distance.Meters) / metersPerMile, nil
}

// Static answers from a fixed table keyed by origin and destination, in
// either direction.
type Static map[[2]string]float64

func (s Static) DistanceMiles(ctx context.Context, origin, destination string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if d, ok := s[[2]string{origin, destination}]; ok {
		return d, nil
	}
	if d, ok := s[[2]string{destination, origin}]; ok {
		return d, nil
	}
	return 0, ErrNoRoute
}
