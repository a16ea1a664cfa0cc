package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "projecthub/pkg/config"
)

type Config struct {
	Server   pkgconfig.ServerConfig   `yaml:"server"`
	DB       pkgconfig.DBConfig       `yaml:"db"`
	MQ       pkgconfig.MQConfig       `yaml:"mq"`
	Redis    pkgconfig.RedisConfig    `yaml:"redis"`
	JWT      pkgconfig.JWTConfig      `yaml:"jwt"`
	Agent    pkgconfig.AgentConfig    `yaml:"agent"`
	OTel     pkgconfig.OTelConfig     `yaml:"otel"`
	Workflow pkgconfig.WorkflowConfig `yaml:"workflow"`
}

// Load reads a single config.yaml and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return finish(&cfg)
}

// LoadLayered reads base.yaml, <env>.yaml and secrets.env from dir.
func LoadLayered(env, dir string) (*Config, error) {
	var cfg Config
	if err := pkgconfig.LoadInto(env, dir, &cfg); err != nil {
		return nil, err
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	// 环境变量覆盖（生产环境使用）
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)
	pkgconfig.OverrideAgentFromEnv(&cfg.Agent)
	pkgconfig.OverrideOTelFromEnv(&cfg.OTel)

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.JWT.TTL <= 0 {
		cfg.JWT.TTL = 24 * time.Hour
	}
	if cfg.Agent.Timeout <= 0 {
		cfg.Agent.Timeout = 30 * time.Second
	}
	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "projecthub"
	}
	if cfg.Workflow.DeadlineWindow <= 0 {
		cfg.Workflow.DeadlineWindow = 72 * time.Hour
	}
	if cfg.Workflow.ReminderTTL <= 0 {
		cfg.Workflow.ReminderTTL = 20 * time.Hour
	}
	if cfg.Workflow.SweepInterval <= 0 {
		cfg.Workflow.SweepInterval = time.Hour
	}
}

// Validate rejects configurations the processes cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (or set JWT_SECRET)")
	}
	if c.DB.Host == "" || c.DB.Name == "" {
		return fmt.Errorf("db.host and db.name are required")
	}
	return nil
}
