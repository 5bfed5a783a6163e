// Package rate prices loads. Everything here is a pure computation over the
// configured tables; the only input from the outside world is the clock used
// when a quote has no ready time.
package rate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"medcourier/pkg/errs"
)

type Tier string

const (
	Routine Tier = "ROUTINE"
	Urgent  Tier = "URGENT"
	Stat    Tier = "STAT"
)

var Tiers = []Tier{Routine, Urgent, Stat}

type Line struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
	Detail string  `json:"detail,omitempty"`
}

type Quote struct {
	Tier                Tier          `json:"tier"`
	DistanceMiles       float64       `json:"distance_miles"`
	BaseRate            float64       `json:"base_rate"`
	AfterHoursSurcharge float64       `json:"after_hours_surcharge"`
	TotalRate           float64       `json:"total_rate"`
	RatePerMile         float64       `json:"rate_per_mile"`
	AfterHours          bool          `json:"after_hours"`
	EvaluatedAt         time.Time     `json:"evaluated_at"`
	EstimatedTransit    time.Duration `json:"estimated_transit"`
	DeadlineReachable   *bool         `json:"deadline_reachable,omitempty"`
	Breakdown           []Line        `json:"breakdown"`
}

type Engine struct {
	cfg           Config
	loc           *time.Location
	extraHolidays map[string]struct{}
	now           func() time.Time
}

// NewEngine validates cfg. A nil clock means time.Now.
func NewEngine(cfg Config, clock func() time.Time) (*Engine, error) {
	if clock == nil {
		clock = time.Now
	}
	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("rate: load time zone %q: %w", cfg.TimeZone, err)
		}
		loc = l
	}
	if cfg.BusinessHoursStart < 0 || cfg.BusinessHoursEnd > 24 || cfg.BusinessHoursStart >= cfg.BusinessHoursEnd {
		return nil, fmt.Errorf("rate: invalid business hours %d-%d", cfg.BusinessHoursStart, cfg.BusinessHoursEnd)
	}
	prev := 0.0
	for _, t := range Tiers {
		pm := cfg.tier(t).PerMile
		if pm <= prev {
			return nil, fmt.Errorf("rate: per-mile rate for %s must be positive and above the lower tier", t)
		}
		prev = pm
	}

	extra := make(map[string]struct{}, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		d, err := time.Parse(dateLayout, strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("rate: bad holiday %q: %w", h, err)
		}
		extra[d.Format(dateLayout)] = struct{}{}
	}

	return &Engine{cfg: cfg, loc: loc, extraHolidays: extra, now: clock}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Normalize maps a service type, canonical or legacy, to its tier.
// Normalizing a tier returns the same tier.
func (e *Engine) Normalize(serviceType string) (Tier, error) {
	key := canonicalKey(serviceType)
	for _, t := range Tiers {
		if key == string(t) {
			return t, nil
		}
	}
	for alias, target := range e.cfg.Aliases {
		if canonicalKey(alias) != key {
			continue
		}
		tk := canonicalKey(target)
		for _, t := range Tiers {
			if tk == string(t) {
				return t, nil
			}
		}
		return "", errs.Validation(errs.CodeInvalidInput, "alias %q points at unknown tier %q", alias, target)
	}
	return "", errs.Validation(errs.CodeInvalidInput, "unknown service type %q", serviceType)
}

func canonicalKey(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// Quote prices a load. readyTime decides the after-hours surcharge; when it
// is nil the engine clock is used.
func (e *Engine) Quote(distanceMiles float64, serviceType string, readyTime, deliveryDeadline *time.Time) (Quote, error) {
	if err := checkDistance(distanceMiles); err != nil {
		return Quote{}, err
	}
	tier, err := e.Normalize(serviceType)
	if err != nil {
		return Quote{}, err
	}

	at := e.now()
	if readyTime != nil {
		at = *readyTime
	}
	if deliveryDeadline != nil && deliveryDeadline.Before(at) {
		return Quote{}, errs.Validation(errs.CodeInvalidInput, "delivery deadline %s is before ready time %s",
			deliveryDeadline.Format(time.RFC3339), at.Format(time.RFC3339))
	}

	perMile := e.cfg.tier(tier).PerMile
	q := Quote{
		Tier:          tier,
		DistanceMiles: distanceMiles,
		BaseRate:      round2(distanceMiles * perMile),
		AfterHours:    e.IsAfterHours(at),
		EvaluatedAt:   at,
	}
	q.Breakdown = append(q.Breakdown, Line{
		Label:  "base",
		Amount: q.BaseRate,
		Detail: fmt.Sprintf("%.2f mi x %.2f/mi (%s)", distanceMiles, perMile, tier),
	})

	if q.AfterHours && distanceMiles > 0 {
		if distanceMiles <= e.cfg.SurchargeCrossoverMiles {
			q.AfterHoursSurcharge = round2(e.cfg.AfterHoursFlatFee)
			q.Breakdown = append(q.Breakdown, Line{Label: "after_hours", Amount: q.AfterHoursSurcharge, Detail: "flat fee"})
		} else {
			q.AfterHoursSurcharge = round2(distanceMiles * e.cfg.AfterHoursPerMile)
			q.Breakdown = append(q.Breakdown, Line{
				Label:  "after_hours",
				Amount: q.AfterHoursSurcharge,
				Detail: fmt.Sprintf("%.2f mi x %.2f/mi", distanceMiles, e.cfg.AfterHoursPerMile),
			})
		}
	}

	q.TotalRate = round2(q.BaseRate + q.AfterHoursSurcharge)
	if distanceMiles > 0 {
		q.RatePerMile = round2(q.TotalRate / distanceMiles)
	}

	q.EstimatedTransit = e.transitTime(distanceMiles)
	if deliveryDeadline != nil {
		reachable := !at.Add(q.EstimatedTransit).After(*deliveryDeadline)
		q.DeadlineReachable = &reachable
		detail := "reachable"
		if !reachable {
			detail = "not reachable at average speed"
		}
		q.Breakdown = append(q.Breakdown, Line{Label: "deadline", Detail: detail})
	}

	return q, nil
}

func (e *Engine) transitTime(distanceMiles float64) time.Duration {
	if e.cfg.AverageSpeedMPH <= 0 || distanceMiles <= 0 {
		return 0
	}
	hours := distanceMiles / e.cfg.AverageSpeedMPH
	return time.Duration(hours * float64(time.Hour)).Round(time.Minute)
}

func checkDistance(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return errs.Validation(errs.CodeInvalidInput, "distance must be a non-negative number, got %v", d)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ceil2 rounds up to the cent, tolerating float noise just above a cent.
func ceil2(v float64) float64 {
	return math.Ceil(v*100-1e-9) / 100
}
