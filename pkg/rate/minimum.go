package rate

import (
	"medcourier/pkg/errs"
)

type Adjusted struct {
	Rate                   float64 `json:"rate"`
	RateAdjustedForMinimum bool    `json:"rate_adjusted_for_minimum"`
	MinimumRate            float64 `json:"minimum_rate,omitempty"`
}

// ApplyMinimum raises rate to the driver's per-mile floor times distance when
// the computed per-mile rate falls below it. It must run after Quote and
// before the amount is persisted.
func (e *Engine) ApplyMinimum(rate, distanceMiles float64, floorPerMile *float64) Adjusted {
	out := Adjusted{Rate: rate}
	if floorPerMile == nil || *floorPerMile <= 0 || distanceMiles <= 0 {
		return out
	}
	out.MinimumRate = ceil2(*floorPerMile * distanceMiles)
	// Compared in cents as well so float noise alone never flags a raise.
	if rate/distanceMiles < *floorPerMile && round2(rate) < out.MinimumRate {
		out.Rate = out.MinimumRate
		out.RateAdjustedForMinimum = true
	}
	return out
}

type Profit struct {
	Rate             float64 `json:"rate"`
	DistanceMiles    float64 `json:"distance_miles"`
	EstimatedHours   float64 `json:"estimated_hours"`
	FuelCost         float64 `json:"fuel_cost"`
	TimeCost         float64 `json:"time_cost"`
	EstimatedCosts   float64 `json:"estimated_costs"`
	Profit           float64 `json:"profit"`
	RatePerMile      float64 `json:"rate_per_mile"`
	MinimumPerMile   float64 `json:"minimum_per_mile"`
	MeetsMinimumRate bool    `json:"meets_minimum_rate"`
}

// EstimateProfit is advisory only. floorPerMile falls back to the configured
// default minimum.
func (e *Engine) EstimateProfit(rate, distanceMiles float64, floorPerMile *float64) Profit {
	minimum := e.cfg.DefaultMinimumRatePerMile
	if floorPerMile != nil && *floorPerMile > 0 {
		minimum = *floorPerMile
	}

	p := Profit{Rate: rate, DistanceMiles: distanceMiles, MinimumPerMile: minimum}
	if e.cfg.AverageSpeedMPH > 0 && distanceMiles > 0 {
		p.EstimatedHours = distanceMiles / e.cfg.AverageSpeedMPH
	}
	p.FuelCost = round2(distanceMiles * e.cfg.OperatingCostPerMile)
	p.TimeCost = round2(p.EstimatedHours * e.cfg.DriverCostPerHour)
	p.EstimatedCosts = round2(p.FuelCost + p.TimeCost)
	p.Profit = round2(rate - p.EstimatedCosts)
	if distanceMiles > 0 {
		p.RatePerMile = round2(rate / distanceMiles)
		p.MeetsMinimumRate = rate/distanceMiles >= minimum
	} else {
		p.MeetsMinimumRate = rate >= 0
	}
	return p
}

// CheckBounds rejects driver-submitted amounts outside the plausible range
// for the tier. Amounts are never clamped.
func (e *Engine) CheckBounds(amount, distanceMiles float64, serviceType string) error {
	tier, err := e.Normalize(serviceType)
	if err != nil {
		return err
	}
	if err := checkDistance(distanceMiles); err != nil {
		return err
	}
	b := e.cfg.tier(tier).Bounds
	if amount <= 0 {
		return errs.Validation(errs.CodeQuoteOutOfBounds, "quote amount must be positive, got %.2f", amount)
	}
	if b.MinTotal > 0 && amount < b.MinTotal {
		return errs.Validation(errs.CodeQuoteOutOfBounds, "%.2f is below the %s minimum of %.2f", amount, tier, b.MinTotal)
	}
	if b.MaxTotal > 0 && amount > b.MaxTotal {
		return errs.Validation(errs.CodeQuoteOutOfBounds, "%.2f is above the %s maximum of %.2f", amount, tier, b.MaxTotal)
	}
	if distanceMiles > 0 {
		perMile := amount / distanceMiles
		if b.MinPerMile > 0 && perMile < b.MinPerMile {
			return errs.Validation(errs.CodeQuoteOutOfBounds, "%.2f/mi is below the %s minimum of %.2f/mi", perMile, tier, b.MinPerMile)
		}
		if b.MaxPerMile > 0 && perMile > b.MaxPerMile {
			return errs.Validation(errs.CodeQuoteOutOfBounds, "%.2f/mi is above the %s maximum of %.2f/mi", perMile, tier, b.MaxPerMile)
		}
	}
	return nil
}
