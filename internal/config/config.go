package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	PostgresURL string `mapstructure:"postgres_url"`
	RedisAddr   string `mapstructure:"redis_addr"`

	InventoryAddr     string `mapstructure:"inventory_addr"`
	PaymentsAddr      string `mapstructure:"payments_addr"`
	NotificationsAddr string `mapstructure:"notifications_addr"`

	// Deadlines resolving the *Requested states; past these, the watchdog
	// treats the step as failed.
	HoldDeadline     time.Duration `mapstructure:"hold_deadline"`
	PaymentDeadline  time.Duration `mapstructure:"payment_deadline"`
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`

	OutboxPollInterval  time.Duration `mapstructure:"outbox_poll_interval"`
	IdempotencyTTL      time.Duration `mapstructure:"idempotency_ttl"`
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout"`

	MessageMaxRetries int `mapstructure:"message_max_retries"`
}

func Load() (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("bookings")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("postgres_url", "postgres://localhost:5432/bookings?sslmode=disable")
	v.SetDefault("redis_addr", "localhost:6379")

	v.SetDefault("inventory_addr", "http://localhost:8091")
	v.SetDefault("payments_addr", "http://localhost:8092")
	v.SetDefault("notifications_addr", "http://localhost:8093")

	v.SetDefault("hold_deadline", 2*time.Minute)
	v.SetDefault("payment_deadline", 5*time.Minute)
	v.SetDefault("watchdog_interval", 15*time.Second)

	v.SetDefault("outbox_poll_interval", 100*time.Millisecond)
	v.SetDefault("idempotency_ttl", 24*time.Hour)
	v.SetDefault("collaborator_timeout", 10*time.Second)

	v.SetDefault("message_max_retries", 10)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
