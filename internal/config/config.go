package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const configFile = "config.toml"

var configTemplate = `# config.toml

# Secret used to sign session cookies.
# Generated on first run.
session_secret = "{{ .sessionSecret }}"

[server]
  # Hostname or IP address to listen on.
  # Default: "{{ .host }}"
  host = "{{ .host }}"

  # Default: 8383
  port = 8383

  # Serve the API under a subdirectory, e.g. "/shop/".
  #base_url = ""

[database]
  # Supported: "sqlite", "postgres"
  type = "sqlite"

  [database.postgres]
    host = "localhost"
    port = 5432
    database = "supergear"
    username = "postgres"
    password = "postgres"
    ssl_mode = "disable"

[logging]
  # Empty path logs to stderr only.
  path = "log/"

  # Options: "ERROR", "WARN", "INFO", "DEBUG", "TRACE"
  level = "DEBUG"

  max_file_size = 50
  max_backup_count = 3

[valkey]
  # Only used when mirror.backend is "valkey".
  address = "localhost:6379"
  password = ""
  db = 0

[mirror]
  # Where the local state snapshot is kept.
  # Supported: "database", "valkey"
  backend = "database"
  key = "supergear-storage"

[remote]
  # Hosted document database.
  # Supported: "firestore", "database"
  backend = "database"
  project_id = ""
  # Leave empty to use application default credentials.
  credentials_file = ""
  timeout_seconds = 10

[auth]
  # Supported: "firebase", "local"
  provider = "local"
  # Where failed sign-ins are counted.
  # Supported: "memory", "valkey"
  limiter = "memory"

[outbox]
  # Distinct documents that may wait for delivery.
  queue_size = 256
  # 1 gives up after the first failure.
  max_attempts = 5
  initial_interval_ms = 250
  max_interval_ms = 10000
  # Cron schedule for retrying writes that ran out of attempts.
  redrive_schedule = "*/5 * * * *"
`

var generateRandomString = func(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// defaultHost binds to all interfaces inside containers.
func defaultHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "0.0.0.0"
	}

	cgroup, err := os.ReadFile("/proc/1/cgroup")
	if err == nil && (bytes.Contains(cgroup, []byte("/docker")) || bytes.Contains(cgroup, []byte("/lxc"))) {
		return "0.0.0.0"
	}

	return "127.0.0.1"
}

func writeConfig(configPath string, configFile string) error {
	cfgPath := filepath.Join(configPath, configFile)

	if err := os.MkdirAll(configPath, os.ModePerm); err != nil {
		return errors.Wrapf(err, "could not create config dir %s", configPath)
	}

	if _, err := os.Stat(cfgPath); !errors.Is(err, os.ErrNotExist) {
		return nil
	}

	secret, err := generateRandomString(16)
	if err != nil {
		return errors.Wrap(err, "could not generate session secret")
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return errors.Wrap(err, "could not create config template")
	}

	var buffer bytes.Buffer
	if err := tmpl.Execute(&buffer, map[string]string{
		"host":          defaultHost(),
		"sessionSecret": secret,
	}); err != nil {
		return errors.Wrap(err, "could not write config template output")
	}

	if err := os.WriteFile(cfgPath, buffer.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "could not write config file %s", cfgPath)
	}

	return nil
}

type AppConfig struct {
	Config *domain.Config
	m      sync.Mutex
}

func New(configPath string, version string) *AppConfig {
	c := &AppConfig{}
	c.defaults()
	c.Config.Version = version
	c.Config.ConfigPath = configPath

	c.load(configPath)

	return c
}

func (c *AppConfig) defaults() {
	c.Config = &domain.Config{
		Version:       "dev",
		SessionSecret: "secret-session-key",
		Server: domain.ServerConfig{
			Host: "127.0.0.1",
			Port: 8383,
		},
		Database: domain.DatabaseConfig{
			Type: "sqlite",
			Postgres: domain.PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "supergear",
				User:     "postgres",
				Pass:     "postgres",
				SslMode:  "disable",
			},
		},
		Logging: domain.LoggingConfig{
			Level:          "DEBUG",
			MaxFileSize:    50,
			MaxBackupCount: 3,
		},
		Valkey: domain.ValkeyConfig{
			Address: "localhost:6379",
		},
		Mirror: domain.MirrorConfig{
			Backend: "database",
			Key:     "supergear-storage",
		},
		Remote: domain.RemoteConfig{
			Backend: "database",
			Timeout: 10,
		},
		Auth: domain.AuthConfig{
			Provider: "local",
			Limiter:  "memory",
		},
		Outbox: domain.OutboxConfig{
			QueueSize:       256,
			MaxAttempts:     5,
			InitialInterval: 250,
			MaxInterval:     10000,
			RedriveSchedule: "*/5 * * * *",
		},
	}
}

func (c *AppConfig) load(configPath string) {
	viper.SetConfigType("toml")
	viper.SetEnvPrefix("SUPERGEAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configPath != "" {
		configPath = path.Clean(configPath)
		if err := writeConfig(configPath, configFile); err != nil {
			log.Printf("could not write default config: %q", err)
		}
		viper.SetConfigFile(path.Join(configPath, configFile))
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/supergear")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Printf("config file not found, using defaults")
		} else {
			log.Printf("config read error: %q, using defaults", err)
		}
	}

	if err := viper.Unmarshal(c.Config); err != nil {
		log.Fatalf("could not unmarshal config file %s: %v", viper.ConfigFileUsed(), err)
	}
}

// Snapshot returns a copy of the current configuration.
func (c *AppConfig) Snapshot() domain.Config {
	c.m.Lock()
	defer c.m.Unlock()
	return *c.Config
}

// Update applies a partial update in memory. Changes are not written back
// to config.toml.
func (c *AppConfig) Update(update domain.ConfigUpdate, log logger.Logger) {
	c.m.Lock()
	defer c.m.Unlock()

	if update.LogLevel != nil {
		c.Config.Logging.Level = *update.LogLevel
		log.SetLogLevel(*update.LogLevel)
	}
	if update.LogPath != nil {
		c.Config.Logging.Path = *update.LogPath
	}
	if update.OutboxMaxAttempts != nil && *update.OutboxMaxAttempts > 0 {
		c.Config.Outbox.MaxAttempts = *update.OutboxMaxAttempts
	}
	if update.OutboxRedriveSchedule != nil {
		c.Config.Outbox.RedriveSchedule = *update.OutboxRedriveSchedule
	}
}

func (c *AppConfig) DynamicReload(log logger.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		c.m.Lock()
		defer c.m.Unlock()

		log.Info().Msgf("config file changed: %s", e.Name)

		if err := viper.ReadInConfig(); err != nil {
			log.Error().Err(err).Msg("could not re-read config file")
			return
		}

		next := *c.Config
		if err := viper.Unmarshal(&next); err != nil {
			log.Error().Err(err).Msg("could not unmarshal reloaded config")
			return
		}
		// only the log level is applied without a restart
		c.Config.Logging.Level = next.Logging.Level

		log.SetLogLevel(c.Config.Logging.Level)

		log.Debug().Msg("config reloaded")
	})
	viper.WatchConfig()
}
