package domain

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"username"`
	Pass     string `mapstructure:"password"`
	SslMode  string `mapstructure:"ssl_mode"`
}

type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type LoggingConfig struct {
	Path           string `mapstructure:"path"`
	Level          string `mapstructure:"level"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	MaxBackupCount int    `mapstructure:"max_backup_count"`
}

type ValkeyConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MirrorConfig selects where the local state snapshot is kept.
type MirrorConfig struct {
	Backend string `mapstructure:"backend"` // "database" or "valkey"
	Key     string `mapstructure:"key"`
}

// RemoteConfig selects the hosted document database.
type RemoteConfig struct {
	Backend         string `mapstructure:"backend"` // "firestore" or "database"
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Timeout         int    `mapstructure:"timeout_seconds"`
}

type AuthConfig struct {
	Provider string `mapstructure:"provider"` // "firebase" or "local"
	Limiter  string `mapstructure:"limiter"`  // "memory" or "valkey"
}

// OutboxConfig tunes delivery of remote cart and favorites writes.
type OutboxConfig struct {
	QueueSize       int    `mapstructure:"queue_size"`
	MaxAttempts     int    `mapstructure:"max_attempts"`
	InitialInterval int    `mapstructure:"initial_interval_ms"`
	MaxInterval     int    `mapstructure:"max_interval_ms"`
	RedriveSchedule string `mapstructure:"redrive_schedule"`
}

// Config holds the application's configuration, mapped from config.toml
type Config struct {
	Version       string
	ConfigPath    string
	SessionSecret string `mapstructure:"session_secret"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Valkey   ValkeyConfig   `mapstructure:"valkey"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

type ConfigUpdate struct {
	LogLevel *string `json:"log_level,omitempty"`
	LogPath  *string `json:"log_path,omitempty"`

	OutboxMaxAttempts     *int    `json:"outbox_max_attempts,omitempty"`
	OutboxRedriveSchedule *string `json:"outbox_redrive_schedule,omitempty"`
}
