package config

import (
	"fmt"
	"strings"
	"time"
)

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"                envDefault:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS"     envDefault:"10"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME"  envDefault:"30m"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"duxbank.db"`
}

type SnapshotConfig struct {
	Path string `env:"SNAPSHOT_PATH" envDefault:"duxbank.snap.zst"`
}

type TracingConfig struct {
	// Empty endpoint disables tracing.
	Endpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	ServiceName string `env:"OTEL_SERVICE_NAME"           envDefault:"duxbank"`
}

// Backend selects where bank state is persisted.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSnapshot Backend = "snapshot"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

func (b *Backend) UnmarshalText(text []byte) error {
	v := Backend(strings.ToLower(strings.TrimSpace(string(text))))

	switch v {
	case BackendMemory, BackendSnapshot, BackendSQLite, BackendPostgres:
		*b = v
		return nil
	default:
		return fmt.Errorf("unknown state backend %q", string(text))
	}
}
