package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

const (
	RunnerProcess = "process"
	RunnerSandbox = "sandbox"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" env-default:"warn"`

	CC            string        `env:"CC" env-default:"gcc"`
	CFlags        string        `env:"CFLAGS"`
	BuildTimeout  time.Duration `env:"BUILD_TIMEOUT" env-default:"1m"`
	RunTimeout    time.Duration `env:"RUN_TIMEOUT" env-default:"10s"`
	MaxOutputSize int           `env:"MAX_OUTPUT_SIZE" env-default:"1048576"`
	// В байтах, 0 - без ограничения
	MemoryLimit int    `env:"MEMORY_LIMIT" env-default:"0"`
	Runner      string `env:"RUNNER" env-default:"process"`
	TasksPath   string `env:"TASKS_PATH" env-default:"tasks"`

	MinIOHost        string  `env:"MINIO_HOST" env-default:"127.0.0.1:9000"`
	MinIOLogin       string  `env:"MINIO_LOGIN"`
	MinIOPassword    string  `env:"MINIO_PASSWORD"`
	MinIOBucket      string  `env:"MINIO_BUCKET" env-default:"submissions"`
	MinIOSecure      bool    `env:"MINIO_SECURE" env-default:"false"`
	RabbitMQHost     string  `env:"RABBIT_HOST" env-default:"127.0.0.1"`
	RabbitMQPort     int     `env:"RABBIT_PORT" env-default:"5672"`
	RabbitMQUser     string  `env:"RABBIT_USER"`
	RabbitMQPassword string  `env:"RABBIT_PASSWORD"`
	WorkersCount     int     `env:"WORKERS_COUNT" env-default:"0"`
	JobsPerSecond    float64 `env:"JOBS_PER_SECOND" env-default:"0"`
}

// NewConfig reads .env when present and the environment otherwise.
func NewConfig() (*Config, error) {
	cfg := &Config{}

	var err error
	if _, statErr := os.Stat(".env"); statErr == nil {
		err = cleanenv.ReadConfig(".env", cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, err
	}
	if cfg.WorkersCount <= 0 {
		cfg.WorkersCount = runtime.NumCPU()
	}
	if cfg.Runner != RunnerProcess && cfg.Runner != RunnerSandbox {
		return nil, errors.Errorf("unknown runner %q", cfg.Runner)
	}

	return cfg, nil
}

func (c *Config) CompilerFlags() []string {
	return strings.Fields(c.CFlags)
}

// RequireQueue checks the settings needed by the worker mode.
func (c *Config) RequireQueue() error {
	for name, value := range map[string]string{
		"MINIO_LOGIN":     c.MinIOLogin,
		"MINIO_PASSWORD":  c.MinIOPassword,
		"RABBIT_USER":     c.RabbitMQUser,
		"RABBIT_PASSWORD": c.RabbitMQPassword,
	} {
		if value == "" {
			return errors.Errorf("%s is required", name)
		}
	}
	return nil
}
