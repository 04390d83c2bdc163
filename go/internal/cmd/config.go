package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		Env             string        `yaml:"env"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console or json
	} `yaml:"log"`

	Rankings struct {
		Backend  string `yaml:"backend"` // file, postgres, redis or memory
		File     string `yaml:"file"`
		Capacity int    `yaml:"capacity"`
		RedisKey string `yaml:"redis_key"`
	} `yaml:"rankings"`

	Match struct {
		WaitTimeout     time.Duration `yaml:"wait_timeout"`
		RoomTTL         time.Duration `yaml:"room_ttl"`
		SweepInterval   time.Duration `yaml:"sweep_interval"`
		StrictScoring   bool          `yaml:"strict_scoring"`
		ChallengeLength int           `yaml:"challenge_length"`
	} `yaml:"match"`

	Gateway struct {
		MaxMessagesPerSecond float64 `yaml:"max_messages_per_second"`
		MaxMessageSize       int64   `yaml:"max_message_size"`
	} `yaml:"gateway"`

	NATS struct {
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`

	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`

	Sessions struct {
		Archive bool `yaml:"archive"`
	} `yaml:"sessions"`
}

var validBackends = map[string]bool{"file": true, "postgres": true, "redis": true, "memory": true}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Env = "development"
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"
	cfg.Rankings.Backend = "file"
	cfg.Rankings.File = "data/rankings.json"
	cfg.Rankings.Capacity = 100
	cfg.Rankings.RedisKey = "typeduel:rankings"
	cfg.Match.SweepInterval = 5 * time.Second
	cfg.Match.ChallengeLength = 30
	cfg.Gateway.MaxMessagesPerSecond = 50
	cfg.Gateway.MaxMessageSize = 1024
	cfg.NATS.Stream = "MATCH_EVENTS"
	cfg.NATS.SubjectPrefix = "match.events"
	return cfg
}

// loadConfig layers defaults, the optional YAML file at path and the
// environment, in that order. A missing file is only an error when required
// is set.
func loadConfig(path string, required bool) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && !required:
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.Env = getEnv("ENV", cfg.Server.Env)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	cfg.Rankings.Backend = strings.ToLower(getEnv("RANKINGS_BACKEND", cfg.Rankings.Backend))
	cfg.Rankings.File = getEnv("RANKINGS_FILE", cfg.Rankings.File)
	cfg.Rankings.Capacity = getEnvInt("RANKINGS_CAPACITY", cfg.Rankings.Capacity)
	cfg.Rankings.RedisKey = getEnv("RANKINGS_REDIS_KEY", cfg.Rankings.RedisKey)

	cfg.Match.WaitTimeout = getEnvDuration("MATCH_WAIT_TIMEOUT", cfg.Match.WaitTimeout)
	cfg.Match.RoomTTL = getEnvDuration("MATCH_ROOM_TTL", cfg.Match.RoomTTL)
	cfg.Match.SweepInterval = getEnvDuration("MATCH_SWEEP_INTERVAL", cfg.Match.SweepInterval)
	cfg.Match.StrictScoring = getEnvBool("MATCH_STRICT_SCORING", cfg.Match.StrictScoring)
	cfg.Match.ChallengeLength = getEnvInt("MATCH_CHALLENGE_LENGTH", cfg.Match.ChallengeLength)

	cfg.Gateway.MaxMessagesPerSecond = getEnvFloat("WS_MAX_MESSAGES_PER_SECOND", cfg.Gateway.MaxMessagesPerSecond)

	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)
	cfg.Sessions.Archive = getEnvBool("SESSIONS_ARCHIVE", cfg.Sessions.Archive)
}

func (c *Config) validate() error {
	if !validBackends[c.Rankings.Backend] {
		return fmt.Errorf("unknown rankings backend %q", c.Rankings.Backend)
	}
	if c.Rankings.Backend == "file" && c.Rankings.File == "" {
		return errors.New("rankings file path is required for the file backend")
	}
	if c.Rankings.Backend == "redis" && c.Redis.URL == "" {
		return errors.New("REDIS_URL is required for the redis backend")
	}
	if c.Match.WaitTimeout < 0 || c.Match.RoomTTL < 0 {
		return errors.New("match timeouts must not be negative")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
