package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries everything the API server needs at startup. Values come from
// environment variables first; an optional YAML file overrides them.
type Config struct {
	Addr          string        `yaml:"addr"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
	RateBurst     int           `yaml:"rate_burst"`
	RatePerSecond int           `yaml:"rate_per_second"`

	LabelStudio LabelStudioConfig `yaml:"label_studio"`
	Stripe      StripeConfig      `yaml:"stripe"`
}

// LabelStudioConfig configures the annotation tool client. An empty URL or
// token leaves the integration disabled.
type LabelStudioConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// StripeConfig configures the payment processor client. An empty secret key
// leaves the integration disabled.
type StripeConfig struct {
	SecretKey string        `yaml:"secret_key"`
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Load builds the config from the environment, then applies the YAML file at
// path when one is given.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("LINGUALABEL_ADDR", ":8080"),
		PostgresDSN:   os.Getenv("LINGUALABEL_PG_DSN"),
		TokenTTL:      getEnvDuration("LINGUALABEL_TOKEN_TTL", 24*time.Hour),
		RateBurst:     getEnvInt("LINGUALABEL_RATE_BURST", 20),
		RatePerSecond: getEnvInt("LINGUALABEL_RATE_PER_SEC", 10),
		LabelStudio: LabelStudioConfig{
			BaseURL: os.Getenv("LINGUALABEL_LS_URL"),
			Token:   os.Getenv("LINGUALABEL_LS_TOKEN"),
			Timeout: getEnvDuration("LINGUALABEL_LS_TIMEOUT", 10*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey: os.Getenv("LINGUALABEL_STRIPE_KEY"),
			BaseURL:   getEnv("LINGUALABEL_STRIPE_URL", "https://api.stripe.com"),
			Timeout:   getEnvDuration("LINGUALABEL_STRIPE_TIMEOUT", 15*time.Second),
		},
	}

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
