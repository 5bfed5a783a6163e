package rate

// Bounds is the plausible range for a quote submitted by a driver.
type Bounds struct {
	MinPerMile float64 `mapstructure:"min_per_mile" json:"min_per_mile"`
	MaxPerMile float64 `mapstructure:"max_per_mile" json:"max_per_mile"`
	MinTotal   float64 `mapstructure:"min_total" json:"min_total"`
	MaxTotal   float64 `mapstructure:"max_total" json:"max_total"`
}

type TierConfig struct {
	PerMile float64 `mapstructure:"per_mile" json:"per_mile"`
	Bounds  Bounds  `mapstructure:"bounds" json:"bounds"`
}

type Config struct {
	Routine TierConfig `mapstructure:"routine" json:"routine"`
	Urgent  TierConfig `mapstructure:"urgent" json:"urgent"`
	Stat    TierConfig `mapstructure:"stat" json:"stat"`

	// Aliases maps legacy service type names to a canonical tier.
	Aliases map[string]string `mapstructure:"aliases" json:"aliases"`

	TimeZone           string   `mapstructure:"time_zone" json:"time_zone"`
	BusinessHoursStart int      `mapstructure:"business_hours_start" json:"business_hours_start"`
	BusinessHoursEnd   int      `mapstructure:"business_hours_end" json:"business_hours_end"`
	FederalHolidays    bool     `mapstructure:"federal_holidays" json:"federal_holidays"`
	Holidays           []string `mapstructure:"holidays" json:"holidays"`

	AfterHoursFlatFee       float64 `mapstructure:"after_hours_flat_fee" json:"after_hours_flat_fee"`
	AfterHoursPerMile       float64 `mapstructure:"after_hours_per_mile" json:"after_hours_per_mile"`
	SurchargeCrossoverMiles float64 `mapstructure:"surcharge_crossover_miles" json:"surcharge_crossover_miles"`

	AverageSpeedMPH           float64 `mapstructure:"average_speed_mph" json:"average_speed_mph"`
	OperatingCostPerMile      float64 `mapstructure:"operating_cost_per_mile" json:"operating_cost_per_mile"`
	DriverCostPerHour         float64 `mapstructure:"driver_cost_per_hour" json:"driver_cost_per_hour"`
	DefaultMinimumRatePerMile float64 `mapstructure:"default_minimum_rate_per_mile" json:"default_minimum_rate_per_mile"`
}

func DefaultConfig() Config {
	return Config{
		Routine: TierConfig{PerMile: 2.25, Bounds: Bounds{MinPerMile: 1.00, MaxPerMile: 12.00, MinTotal: 15, MaxTotal: 5000}},
		Urgent:  TierConfig{PerMile: 3.10, Bounds: Bounds{MinPerMile: 1.50, MaxPerMile: 18.00, MinTotal: 20, MaxTotal: 7500}},
		Stat:    TierConfig{PerMile: 4.50, Bounds: Bounds{MinPerMile: 2.00, MaxPerMile: 25.00, MinTotal: 25, MaxTotal: 10000}},
		Aliases: map[string]string{
			"SAME_DAY":  string(Routine),
			"STANDARD":  string(Routine),
			"SCHEDULED": string(Routine),
			"NEXT_DAY":  string(Routine),
			"RUSH":      string(Urgent),
			"PRIORITY":  string(Urgent),
			"EXPRESS":   string(Urgent),
			"TWO_HOUR":  string(Urgent),
			"ASAP":      string(Stat),
			"EMERGENCY": string(Stat),
			"CRITICAL":  string(Stat),
			"DIRECT":    string(Stat),
		},
		TimeZone:                  "America/New_York",
		BusinessHoursStart:        8,
		BusinessHoursEnd:          18,
		FederalHolidays:           true,
		AfterHoursFlatFee:         35.00,
		AfterHoursPerMile:         0.75,
		SurchargeCrossoverMiles:   50,
		AverageSpeedMPH:           45,
		OperatingCostPerMile:      0.62,
		DriverCostPerHour:         22.00,
		DefaultMinimumRatePerMile: 1.75,
	}
}

func (c Config) tier(t Tier) TierConfig {
	switch t {
	case Urgent:
		return c.Urgent
	case Stat:
		return c.Stat
	default:
		return c.Routine
	}
}
