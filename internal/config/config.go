package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	IsDebug           bool   `yaml:"is_debug" env:"IS_DEBUG" env-default:"false"`
	AcceptUnknownChp  bool   `yaml:"accept_unknown_chp" env:"ACCEPT_UNKNOWN_CHP" env-default:"false"`
	HeartbeatInterval int    `yaml:"heartbeat_interval" env:"HEARTBEAT_INTERVAL" env-default:"300"`
	TimeZone          string `yaml:"time_zone" env:"TIME_ZONE" env-default:"UTC"`
	Listen            struct {
		BindIP   string `yaml:"bind_ip" env:"LISTEN_BIND_IP" env-default:"0.0.0.0"`
		Port     string `yaml:"port" env:"LISTEN_PORT" env-default:"5000"`
		TLS      bool   `yaml:"tls_enabled" env-default:"false"`
		CertFile string `yaml:"cert_file" env-default:""`
		KeyFile  string `yaml:"key_file" env-default:""`
	} `yaml:"listen"`
	Api struct {
		Enabled         bool          `yaml:"enabled" env-default:"true"`
		BindIP          string        `yaml:"bind_ip" env:"API_BIND_IP" env-default:"127.0.0.1"`
		Port            string        `yaml:"port" env:"API_PORT" env-default:"5001"`
		TLS             bool          `yaml:"tls_enabled" env-default:"false"`
		CertFile        string        `yaml:"cert_file" env-default:""`
		KeyFile         string        `yaml:"key_file" env-default:""`
		ResponseTimeout time.Duration `yaml:"response_timeout" env-default:"10s"`
	} `yaml:"api"`
	Mongo struct {
		Enabled  bool   `yaml:"enabled" env:"MONGO_ENABLED" env-default:"false"`
		Host     string `yaml:"host" env:"MONGO_HOST" env-default:"127.0.0.1"`
		Port     string `yaml:"port" env:"MONGO_PORT" env-default:"27017"`
		User     string `yaml:"user" env:"MONGO_USER" env-default:""`
		Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
		Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"evcentral"`
	} `yaml:"mongo"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env-default:"127.0.0.1"`
		Port    string `yaml:"port" env-default:"9100"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	} `yaml:"log"`
	Tasks struct {
		Workers     int           `yaml:"workers" env-default:"4"`
		QueueSize   int           `yaml:"queue_size" env-default:"1000"`
		MaxAttempts int           `yaml:"max_attempts" env-default:"3"`
		BaseDelay   time.Duration `yaml:"base_delay" env-default:"1s"`
		Rate        float64       `yaml:"rate" env-default:"50"`
	} `yaml:"tasks"`
	Hooks struct {
		Authorization []Hook `yaml:"authorization"`
		StateChange   []Hook `yaml:"state_change"`
	} `yaml:"hooks"`
	Telegram struct {
		Enabled bool    `yaml:"enabled" env:"TELEGRAM_ENABLED" env-default:"false"`
		ApiKey  string  `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
		ChatIds []int64 `yaml:"chat_ids"`
	} `yaml:"telegram"`
	Cleanup struct {
		AuthorizationEnabled       bool          `yaml:"authorization_enabled" env-default:"true"`
		AuthorizationRetentionDays int           `yaml:"authorization_retention_days" env-default:"30"`
		StateChangeEnabled         bool          `yaml:"state_change_enabled" env-default:"true"`
		StateChangeRetentionDays   int           `yaml:"state_change_retention_days" env-default:"30"`
		OutboundTimeout            time.Duration `yaml:"outbound_timeout" env-default:"60s"`
	} `yaml:"cleanup"`
}

// Hook one entry of the hook registry. Type is one of user_tag, webhook, telegram, log;
// Mode is sync or async.
type Hook struct {
	Name    string        `yaml:"name"`
	Type    string        `yaml:"type"`
	Mode    string        `yaml:"mode"`
	Url     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads the configuration file and applies environment overrides.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		desc, _ := cleanenv.GetDescription(conf, nil)
		return nil, fmt.Errorf("reading config %s: %w\n%s", path, err, desc)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Default returns a configuration populated only from defaults and the environment.
func Default() (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadEnv(conf); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return conf, conf.validate()
}

func (c *Config) validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %d", c.HeartbeatInterval)
	}
	if c.Tasks.MaxAttempts < 1 {
		return fmt.Errorf("tasks.max_attempts must be at least 1, got %d", c.Tasks.MaxAttempts)
	}
	if c.Tasks.Workers < 1 {
		return fmt.Errorf("tasks.workers must be at least 1, got %d", c.Tasks.Workers)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("time_zone %q: %w", c.TimeZone, err)
	}
	return nil
}

// Location resolves the configured time zone; validate guarantees it loads.
func (c *Config) Location() *time.Location {
	location, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return location
}
