// Package config handles loading and validation of decommigrate.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

// Default throttle settings, matching the operational defaults the service
// ships with. All of them are overridable in decommigrate.yaml.
const (
	DefaultBatchSize           = 1000
	DefaultSleepSeconds        = 0.5
	DefaultFilesBeforePause    = 10
	DefaultPauseSeconds        = 30.0
	DefaultInitialDelaySeconds = 60
	DefaultServerAddr          = ":2950"
)

// Load reads and parses decommigrate.yaml from the given directory.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "decommigrate.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.Scope == "" {
		cfg.Scope = "DEFAULT"
	}
	if cfg.Migration.BatchSize <= 0 {
		cfg.Migration.BatchSize = DefaultBatchSize
	}
	if cfg.Migration.SleepSeconds <= 0 {
		cfg.Migration.SleepSeconds = DefaultSleepSeconds
	}
	if cfg.Migration.FilesBeforePause <= 0 {
		cfg.Migration.FilesBeforePause = DefaultFilesBeforePause
	}
	if cfg.Migration.PauseSeconds <= 0 {
		cfg.Migration.PauseSeconds = DefaultPauseSeconds
	}
	if cfg.Migration.InitialDelaySeconds == nil {
		d := DefaultInitialDelaySeconds
		cfg.Migration.InitialDelaySeconds = &d
	}
	if cfg.Server != nil && cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	// Definitions default to the checkpoint Redis connection when the
	// checkpoint provider is redis and no separate source is configured.
	if cfg.Definitions == nil && cfg.Checkpoint.Provider == types.CheckpointRedis {
		cfg.Definitions = cfg.Checkpoint.Redis
	}
}

// applyEnvOverrides lets credentials come from the environment instead of the
// YAML file. Only credentials; everything else belongs in the file.
func applyEnvOverrides(cfg *types.ProjectConfig) {
	if pw := os.Getenv("DECOMMIGRATE_REDIS_PASSWORD"); pw != "" {
		if cfg.Checkpoint.Redis != nil {
			cfg.Checkpoint.Redis.Password = pw
		}
		if cfg.Definitions != nil && cfg.Definitions.Password == "" {
			cfg.Definitions.Password = pw
		}
	}
	if pw := os.Getenv("DECOMMIGRATE_QUESTDB_PASSWORD"); pw != "" {
		cfg.QuestDB.Password = pw
	}
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Bucket.Name == "" {
		return fmt.Errorf("bucket.name is required")
	}
	switch cfg.Checkpoint.Provider {
	case types.CheckpointRedis:
		if cfg.Checkpoint.Redis == nil || cfg.Checkpoint.Redis.Addr == "" {
			return fmt.Errorf("checkpoint.redis.addr is required when provider is redis")
		}
	case types.CheckpointDynamoDB:
		if cfg.Checkpoint.DynamoDB == nil || cfg.Checkpoint.DynamoDB.TableName == "" {
			return fmt.Errorf("checkpoint.dynamodb.tableName is required when provider is dynamodb")
		}
	case "":
		return fmt.Errorf("checkpoint.provider is required")
	default:
		return fmt.Errorf("unknown checkpoint provider %q", cfg.Checkpoint.Provider)
	}
	if cfg.Definitions == nil || cfg.Definitions.Addr == "" {
		return fmt.Errorf("definitions.addr is required")
	}
	if cfg.QuestDB.ILPAddr == "" {
		return fmt.Errorf("questdb.ilpAddr is required")
	}
	if cfg.QuestDB.PGDSN == "" {
		return fmt.Errorf("questdb.pgDsn is required")
	}
	for _, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("webhook alert requires url")
			}
		case types.AlertSNS:
			if a.TopicARN == "" {
				return fmt.Errorf("sns alert requires topicArn")
			}
		default:
			return fmt.Errorf("unknown alert type %q", a.Type)
		}
	}
	return nil
}
