package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"medcourier/config"
	"medcourier/pkg/models"
)

type Options struct {
	RatesFile string
	LogLevel  string
	// As is the caller identity in TYPE:ID form, e.g. ADMIN:ops-1.
	As string
}

func NewOptions() *Options {
	cfg := config.Load()
	return &Options{
		RatesFile: cfg.RatesFile,
		LogLevel:  "info",
		As:        "ADMIN:" + cfg.AdminID,
	}
}

func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.RatesFile, "rates", o.RatesFile, "Rate table file (yaml, json or toml). Empty uses the built-in table.")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level: debug, info, warn or error.")
	fs.StringVar(&o.As, "as", o.As, "Caller identity as TYPE:ID (SHIPPER, DRIVER, ADMIN or SYSTEM).")
}

// Auth parses the --as flag.
func (o *Options) Auth() (models.AuthContext, error) {
	kind, id, ok := strings.Cut(o.As, ":")
	if !ok || id == "" {
		return models.AuthContext{}, fmt.Errorf("--as must look like TYPE:ID, got %q", o.As)
	}
	t := models.UserType(strings.ToUpper(kind))
	switch t {
	case models.UserShipper, models.UserDriver, models.UserAdmin, models.UserSystem:
	default:
		return models.AuthContext{}, fmt.Errorf("unknown caller type %q", kind)
	}
	return models.AuthContext{UserID: id, UserType: t}, nil
}
