package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/auth"
	"github.com/Rajvira10/todoist-netlify/services/tasks/adapters/notify"
	"github.com/Rajvira10/todoist-netlify/services/tasks/core"
)

type DispatchConfig struct {
	Interval     time.Duration `yaml:"interval" env:"DISPATCH_INTERVAL" env-default:"30s" validate:"gt=0"`
	BatchSize    int           `yaml:"batch_size" env:"DISPATCH_BATCH_SIZE" env-default:"100" validate:"gt=0"`
	Concurrency  int           `yaml:"concurrency" env:"DISPATCH_CONCURRENCY" env-default:"4" validate:"gt=0"`
	StoreTimeout time.Duration `yaml:"store_timeout" env:"DISPATCH_STORE_TIMEOUT" env-default:"5s" validate:"gt=0"`
	SendTimeout  time.Duration `yaml:"send_timeout" env:"DISPATCH_SEND_TIMEOUT" env-default:"30s" validate:"gt=0"`
	ClaimTTL     time.Duration `yaml:"claim_ttl" env:"DISPATCH_CLAIM_TTL" env-default:"2m" validate:"gt=0"`
	MaxAttempts  int           `yaml:"max_attempts" env:"DISPATCH_MAX_ATTEMPTS" env-default:"8" validate:"gt=0"`
	BaseBackoff  time.Duration `yaml:"base_backoff" env:"DISPATCH_BASE_BACKOFF" env-default:"30s" validate:"gt=0"`
	MaxBackoff   time.Duration `yaml:"max_backoff" env:"DISPATCH_MAX_BACKOFF" env-default:"1h" validate:"gtefield=BaseBackoff"`
}

func (d DispatchConfig) Core() core.DispatcherConfig {
	return core.DispatcherConfig{
		Interval:     d.Interval,
		BatchSize:    d.BatchSize,
		Concurrency:  d.Concurrency,
		StoreTimeout: d.StoreTimeout,
		SendTimeout:  d.SendTimeout,
		ClaimTTL:     d.ClaimTTL,
		MaxAttempts:  d.MaxAttempts,
		BaseBackoff:  d.BaseBackoff,
		MaxBackoff:   d.MaxBackoff,
	}
}

type Config struct {
	LogLevel       string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"DEBUG" validate:"oneof=DEBUG INFO WARN ERROR"`
	HTTPAddress    string        `yaml:"http_address" env:"HTTP_ADDRESS" env-default:":8080" validate:"required"`
	GRPCAddress    string        `yaml:"grpc_address" env:"GRPC_ADDRESS" env-default:":8081" validate:"required"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT" env-default:"5s" validate:"gt=0"`
	DBDriver       string        `yaml:"db_driver" env:"DB_DRIVER" env-default:"pgx" validate:"oneof=pgx sqlite3"`
	DBAddress      string        `yaml:"db_address" env:"DB_ADDRESS" env-required:"true"`
	Timezone       string        `yaml:"timezone" env:"TIMEZONE" env-default:"UTC" validate:"timezone"`

	Dispatch DispatchConfig `yaml:"dispatch"`
	Notify   notify.Config  `yaml:"notify"`
	Auth     auth.Config    `yaml:"auth"`
}

// validateClaimTTL rejects a claim lease that can expire while one attempt
// is still in flight.
func validateClaimTTL(sl validator.StructLevel) {
	d := sl.Current().Interface().(DispatchConfig)
	if d.ClaimTTL <= d.Core().MinClaimTTL() {
		sl.ReportError(d.ClaimTTL, "ClaimTTL", "claim_ttl", "claimttl", "")
	}
}

// Location returns the reference timezone for reminder and deadline input.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load reads configPath, falling back to the environment when the file does
// not exist, and validates the result.
func Load(configPath string) (Config, error) {
	var cfg Config

	if err := read(configPath, &cfg); err != nil {
		return Config{}, err
	}

	v := validator.New()
	v.RegisterStructValidation(validateClaimTTL, DispatchConfig{})
	if err := v.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Auth.Mode == auth.ModeJWT && cfg.Auth.JWTSecret == "" {
		return Config{}, errors.New("invalid config: auth.jwt_secret is required in jwt mode")
	}
	return cfg, nil
}

func read(configPath string, cfg *Config) error {
	// если путь пустой - просто env
	if configPath == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("cannot read env: %w", err)
		}
		return nil
	}

	// пробуем файл, если его нет - env
	if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
		var pe *os.PathError
		if errors.As(err, &pe) {
			if err := cleanenv.ReadEnv(cfg); err != nil {
				return fmt.Errorf("cannot read env: %w", err)
			}
			return nil
		}
		return fmt.Errorf("cannot read config %q: %w", configPath, err)
	}
	return nil
}

func MustLoad(configPath string) Config {
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("%s", err)
	}
	return cfg
}
