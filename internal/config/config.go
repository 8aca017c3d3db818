// Package config loads service configuration from the environment, with
// an optional .env file for local development and an optional YAML file
// describing the subscription plans.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	TableName       string        `envconfig:"TABLE_NAME" default:"vowsuite"`
	MediaBucket     string        `envconfig:"MEDIA_BUCKET" required:"true"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	PresignTTL      time.Duration `envconfig:"PRESIGN_TTL" default:"600s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	PlanLimitsPath  string        `envconfig:"PLAN_LIMITS_PATH"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Plans is populated from PlanLimitsPath when set.
	Plans Plans `ignored:"true"`
}

// PlanLimits caps what one subscription plan may create.
type PlanLimits struct {
	Gifts  int `yaml:"gifts"`
	Tracks int `yaml:"tracks"`
	Images int `yaml:"images"`
}

type Plans map[string]PlanLimits

// DefaultPlans applies when no plan file is configured.
func DefaultPlans() Plans {
	return Plans{
		"basic":   {Gifts: 25, Tracks: 25, Images: 50},
		"premium": {Gifts: 50, Tracks: 100, Images: 200},
	}
}

// Valid reports whether the plan name is known.
func (p Plans) Valid(name string) bool {
	_, ok := p[name]
	return ok
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("vowsuite", &c); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	plans, err := LoadPlans(c.PlanLimitsPath)
	if err != nil {
		return nil, err
	}
	c.Plans = plans
	return &c, nil
}

// LoadPlans reads the plan-limits YAML, or returns the defaults when no
// path is configured.
func LoadPlans(path string) (Plans, error) {
	if path == "" {
		return DefaultPlans(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan limits: %w", err)
	}
	var plans Plans
	if err := yaml.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("parse plan limits: %w", err)
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan limits file %s defines no plans", path)
	}
	return plans, nil
}
