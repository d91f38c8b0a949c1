package main

import (
	"log/slog"
	"time"

	"github.com/fastprodman/duxbank/internal/config"
	"github.com/fastprodman/duxbank/internal/scheduler"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT"             envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL"        envDefault:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// Empty uses the built-in economy.
	TuningPath string `env:"BANK_TUNING_PATH" envDefault:""`

	Backend        config.Backend `env:"STATE_BACKEND"   envDefault:"snapshot"`
	JournalEnabled bool           `env:"JOURNAL_ENABLED" envDefault:"false"`

	DailyResetAt  scheduler.TimeOfDay `env:"DAILY_RESET_AT" envDefault:"16:00"`
	RegenInterval time.Duration       `env:"REGEN_INTERVAL" envDefault:"5m"`
	SaveInterval  time.Duration       `env:"SAVE_INTERVAL"  envDefault:"60m"`

	RatePerSecond float64 `env:"RATE_LIMIT_PER_SECOND" envDefault:"2"`
	RateBurst     int     `env:"RATE_LIMIT_BURST"      envDefault:"5"`

	Postgres config.PostgresConfig
	SQLite   config.SQLiteConfig
	Snapshot config.SnapshotConfig
	Tracing  config.TracingConfig
}
