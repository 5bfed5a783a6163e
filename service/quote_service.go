package service

import (
	"context"
	"time"

	"medcourier/pkg/distance"
	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/rate"
	"medcourier/storage"
)

const defaultDistanceTimeout = 3 * time.Second

type QuoteRequest struct {
	PickupFacilityID  string `json:"pickup_facility_id"`
	DropoffFacilityID string `json:"dropoff_facility_id"`
	// DistanceMiles skips the distance lookup when set.
	DistanceMiles    *float64   `json:"distance_miles"`
	ServiceType      string     `json:"service_type"`
	ReadyTime        *time.Time `json:"ready_time"`
	DeliveryDeadline *time.Time `json:"delivery_deadline"`
	DriverID         string     `json:"driver_id"`
}

// Suggestion is a quote preview. Quote is nil when the distance could not be
// determined; Degraded is then set and Reason says why.
type Suggestion struct {
	DistanceMiles *float64       `json:"distance_miles"`
	Quote         *rate.Quote    `json:"quote"`
	Adjusted      *rate.Adjusted `json:"adjusted,omitempty"`
	Profit        *rate.Profit   `json:"profit,omitempty"`
	Degraded      bool           `json:"degraded"`
	Reason        string         `json:"reason,omitempty"`
}

type QuoteService interface {
	Suggest(ctx context.Context, req QuoteRequest) (*Suggestion, error)
}

type quoteService struct {
	stg      storage.IStorage
	rates    *rate.Engine
	distance distance.Provider
	timeout  time.Duration
	log      logger.ILogger
}

func NewQuoteService(stg storage.IStorage, rates *rate.Engine, provider distance.Provider, timeout time.Duration, log logger.ILogger) QuoteService {
	if timeout <= 0 {
		timeout = defaultDistanceTimeout
	}
	return &quoteService{stg: stg, rates: rates, distance: provider, timeout: timeout, log: log}
}

func (s *quoteService) Suggest(ctx context.Context, req QuoteRequest) (*Suggestion, error) {
	if _, err := s.rates.Normalize(req.ServiceType); err != nil {
		return nil, err
	}

	miles := req.DistanceMiles
	if miles == nil {
		d, reason, err := s.lookup(ctx, req)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			return &Suggestion{Degraded: true, Reason: reason}, nil
		}
		miles = &d
	}

	q, err := s.rates.Quote(*miles, req.ServiceType, req.ReadyTime, req.DeliveryDeadline)
	if err != nil {
		return nil, err
	}
	out := &Suggestion{DistanceMiles: miles, Quote: &q}

	if req.DriverID != "" {
		d, err := s.stg.Driver().GetByID(ctx, req.DriverID)
		if err != nil {
			return nil, err
		}
		adj := s.rates.ApplyMinimum(q.TotalRate, *miles, d.MinimumRatePerMile)
		profit := s.rates.EstimateProfit(adj.Rate, *miles, d.MinimumRatePerMile)
		out.Adjusted = &adj
		out.Profit = &profit
	}
	return out, nil
}

// lookup resolves the facilities and asks the provider for the distance. A
// provider failure is not an error: it yields a non-empty reason instead.
func (s *quoteService) lookup(ctx context.Context, req QuoteRequest) (float64, string, error) {
	if req.PickupFacilityID == "" || req.DropoffFacilityID == "" {
		return 0, "", errs.Validation(errs.CodeInvalidInput, "facilities or a distance are required")
	}
	from, err := s.stg.Facility().GetByID(ctx, req.PickupFacilityID)
	if err != nil {
		return 0, "", err
	}
	to, err := s.stg.Facility().GetByID(ctx, req.DropoffFacilityID)
	if err != nil {
		return 0, "", err
	}
	if s.distance == nil {
		return 0, "no distance provider configured", nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	d, err := s.distance.DistanceMiles(ctx, address(from.Address, from.Name), address(to.Address, to.Name))
	if err != nil {
		s.log.Warning("distance lookup failed, no suggested rate",
			logger.String("pickup", from.ID),
			logger.String("dropoff", to.ID),
			logger.Error(err),
		)
		return 0, "distance unavailable: " + err.Error(), nil
	}
	return d, "", nil
}

func address(addr, name string) string {
	if addr != "" {
		return addr
	}
	return name
}
