package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	ServiceName string
	LoggerLevel string
	LogFile     string

	AppPort int

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	TelegramBotToken string

	RabbitURL      string
	RabbitExchange string

	GoogleCredentialsFile string
	GoogleCalendarID      string
	GoogleMapsAPIKey      string

	RatesFile string

	NotifyTimeout   time.Duration
	DistanceTimeout time.Duration
	SweepSchedule   string
	SweepBatchSize  int
	AdminID         string
}

func Load() Config {
	_ = godotenv.Load(".env")

	cfg := Config{}

	cfg.ServiceName = cast.ToString(getOrReturnDefault("SERVICE_NAME", "medcourier"))
	cfg.LoggerLevel = cast.ToString(getOrReturnDefault("LOGGER_LEVEL", "debug"))
	cfg.LogFile = cast.ToString(getOrReturnDefault("LOG_FILE", ""))
	cfg.AppPort = cast.ToInt(getOrReturnDefault("APP_PORT", 8080))

	cfg.PostgresHost = cast.ToString(getOrReturnDefault("POSTGRES_HOST", "localhost"))
	cfg.PostgresPort = cast.ToString(getOrReturnDefault("POSTGRES_PORT", "5432"))
	cfg.PostgresUser = cast.ToString(getOrReturnDefault("POSTGRES_USER", "postgres"))
	cfg.PostgresPassword = cast.ToString(getOrReturnDefault("POSTGRES_PASSWORD", "1234"))
	cfg.PostgresDB = cast.ToString(getOrReturnDefault("POSTGRES_DB", "medcourier"))
	cfg.MigrationsPath = cast.ToString(getOrReturnDefault("MIGRATIONS_PATH", ""))

	cfg.TelegramBotToken = cast.ToString(getOrReturnDefault("TG_BOT_TOKEN", ""))

	cfg.RabbitURL = cast.ToString(getOrReturnDefault("RABBITMQ_URL", ""))
	cfg.RabbitExchange = cast.ToString(getOrReturnDefault("RABBITMQ_EXCHANGE", "load_events"))

	cfg.GoogleCredentialsFile = cast.ToString(getOrReturnDefault("GOOGLE_CREDENTIALS_FILE", ""))
	cfg.GoogleCalendarID = cast.ToString(getOrReturnDefault("GOOGLE_CALENDAR_ID", ""))
	cfg.GoogleMapsAPIKey = cast.ToString(getOrReturnDefault("GOOGLE_MAPS_API_KEY", ""))

	cfg.RatesFile = cast.ToString(getOrReturnDefault("RATES_FILE", ""))

	cfg.NotifyTimeout = cast.ToDuration(getOrReturnDefault("NOTIFY_TIMEOUT", "5s"))
	cfg.DistanceTimeout = cast.ToDuration(getOrReturnDefault("DISTANCE_TIMEOUT", "3s"))
	cfg.SweepSchedule = cast.ToString(getOrReturnDefault("SWEEP_SCHEDULE", "@every 5m"))
	cfg.SweepBatchSize = cast.ToInt(getOrReturnDefault("SWEEP_BATCH_SIZE", 100))
	cfg.AdminID = cast.ToString(getOrReturnDefault("ADMIN_ID", ""))

	return cfg
}

// PostgresURL is the DSN shared by the pool and the migrator.
func (c Config) PostgresURL() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword + "@" + c.PostgresHost + ":" + c.PostgresPort + "/" + c.PostgresDB + "?sslmode=disable"
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
