package config

import (
	"fmt"

	"github.com/spf13/viper"

	"medcourier/pkg/rate"
)

// LoadRates overlays the rate table file at path on rate.DefaultConfig.
// An empty path returns the defaults. Keys missing from the file keep their
// default values.
func LoadRates(path string) (rate.Config, error) {
	cfg := rate.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RATES")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read rates file %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode rates file %s: %w", path, err)
	}
	return cfg, nil
}
