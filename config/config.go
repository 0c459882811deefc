package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Peers allowed to set X-Forwarded-For; empty trusts none.
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`

	// Grooming bookings live in MongoDB.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// Garden bookings live in Postgres.
	GardenDatabaseDSN string `mapstructure:"GARDEN_DATABASE_DSN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Board.
	FacilityTimezone    string `mapstructure:"FACILITY_TIMEZONE"`
	DayStartHour        int    `mapstructure:"DAY_START_HOUR"`
	DayEndHour          int    `mapstructure:"DAY_END_HOUR"`
	IntervalMinutes     int    `mapstructure:"INTERVAL_MINUTES"`
	MinRowHeightPx      int    `mapstructure:"MIN_ROW_HEIGHT_PX"`
	DefaultZoom         string `mapstructure:"DEFAULT_ZOOM"`
	DayCacheTTLSeconds  int    `mapstructure:"DAY_CACHE_TTL_SECONDS"`
	RefreshCron         string `mapstructure:"REFRESH_CRON"`
	ReminderLeadMinutes int    `mapstructure:"REMINDER_LEAD_MINUTES"`
	RefreshOnCommit     bool   `mapstructure:"REFRESH_ON_COMMIT"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("TRUSTED_PROXIES", []string{})
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("MONGO_DB_NAME", "pawboard")
	viper.SetDefault("GARDEN_DATABASE_DSN", "postgres://localhost:5432/pawboard?sslmode=disable")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("FACILITY_TIMEZONE", "Local")
	viper.SetDefault("DAY_START_HOUR", 7)
	viper.SetDefault("DAY_END_HOUR", 20)
	viper.SetDefault("INTERVAL_MINUTES", 15)
	viper.SetDefault("MIN_ROW_HEIGHT_PX", 12)
	viper.SetDefault("DEFAULT_ZOOM", "comfortable")
	viper.SetDefault("DAY_CACHE_TTL_SECONDS", 60)
	viper.SetDefault("REFRESH_CRON", "*/5 * * * *")
	viper.SetDefault("REMINDER_LEAD_MINUTES", 120)
	viper.SetDefault("REFRESH_ON_COMMIT", false)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// FacilityLocation resolves FACILITY_TIMEZONE, falling back to the host zone.
func FacilityLocation() *time.Location {
	loc, err := time.LoadLocation(AppConfig.FacilityTimezone)
	if err != nil {
		log.Printf("Unknown FACILITY_TIMEZONE %q, using local time", AppConfig.FacilityTimezone)
		return time.Local
	}
	return loc
}

func DayCacheTTL() time.Duration {
	return time.Duration(AppConfig.DayCacheTTLSeconds) * time.Second
}

func ReminderLead() time.Duration {
	return time.Duration(AppConfig.ReminderLeadMinutes) * time.Minute
}
