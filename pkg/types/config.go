package types

// ProjectConfig is the parsed decommigrate.yaml.
type ProjectConfig struct {
	Scope         string               `yaml:"scope" json:"scope"`
	Bucket        BucketConfig         `yaml:"bucket" json:"bucket"`
	Migration     MigrationConfig      `yaml:"migration" json:"migration"`
	Checkpoint    CheckpointConfig     `yaml:"checkpoint" json:"checkpoint"`
	Definitions   *RedisConfig         `yaml:"definitions,omitempty" json:"definitions,omitempty"`
	QuestDB       QuestDBConfig        `yaml:"questdb" json:"questdb"`
	Server        *ServerConfig        `yaml:"server,omitempty" json:"server,omitempty"`
	Alerts        []AlertConfig        `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Secrets       *SecretsConfig       `yaml:"secrets,omitempty" json:"secrets,omitempty"`
	Observability *ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// BucketConfig configures the object store holding the decom logs.
type BucketConfig struct {
	Name     string `yaml:"name" json:"name"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // for MinIO and friends
}

// MigrationConfig holds the throttle and routing knobs for a run.
type MigrationConfig struct {
	BatchSize           int     `yaml:"batchSize,omitempty" json:"batchSize,omitempty"`
	SleepSeconds        float64 `yaml:"sleepSeconds,omitempty" json:"sleepSeconds,omitempty"`
	FilesBeforePause    int     `yaml:"filesBeforePause,omitempty" json:"filesBeforePause,omitempty"`
	PauseSeconds        float64 `yaml:"pauseSeconds,omitempty" json:"pauseSeconds,omitempty"`
	InitialDelaySeconds *int    `yaml:"initialDelaySeconds,omitempty" json:"initialDelaySeconds,omitempty"`
	ErrorRouting        *bool   `yaml:"errorRouting,omitempty" json:"errorRouting,omitempty"` // default true
}

// InitialDelay returns the configured startup delay, zero when explicitly
// disabled, zero when unset (the loader applies the default).
func (m MigrationConfig) InitialDelay() int {
	if m.InitialDelaySeconds == nil {
		return 0
	}
	return *m.InitialDelaySeconds
}

// ErrorRoutingEnabled reports whether failed files are moved to the error/ mirror.
func (m MigrationConfig) ErrorRoutingEnabled() bool {
	return m.ErrorRouting == nil || *m.ErrorRouting
}

// CheckpointConfig selects and configures the checkpoint store backend.
type CheckpointConfig struct {
	Provider CheckpointProvider `yaml:"provider" json:"provider"`
	Redis    *RedisConfig       `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB *DynamoDBConfig    `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// RedisConfig configures a Redis/Valkey connection.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// DynamoDBConfig configures the DynamoDB checkpoint backend.
type DynamoDBConfig struct {
	TableName string `yaml:"tableName" json:"tableName"`
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // for DynamoDB Local
}

// QuestDBConfig configures the destination time-series database.
// ILPAddr feeds the line-protocol sender; PGDSN feeds the metadata queries
// over the Postgres wire port.
type QuestDBConfig struct {
	ILPAddr  string `yaml:"ilpAddr" json:"ilpAddr"`
	PGDSN    string `yaml:"pgDsn" json:"pgDsn"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`           // webhook
	TopicARN string    `yaml:"topicArn,omitempty" json:"topicArn,omitempty"` // sns
}

// SecretsConfig names AWS Secrets Manager secrets holding credentials that
// should not live in the YAML file.
type SecretsConfig struct {
	QuestDBPassword string `yaml:"questdbPassword,omitempty" json:"questdbPassword,omitempty"`
	RedisPassword   string `yaml:"redisPassword,omitempty" json:"redisPassword,omitempty"`
	Region          string `yaml:"region,omitempty" json:"region,omitempty"`
}

// ObservabilityConfig configures the optional OTLP exporters.
type ObservabilityConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"` // host:port for OTLP gRPC
	ServiceName string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}
