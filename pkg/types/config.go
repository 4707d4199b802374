package types

// ProjectConfig is the top-level oacload.yaml configuration.
type ProjectConfig struct {
	Asset          string          `yaml:"asset" json:"asset"`
	Endpoint       string          `yaml:"endpoint" json:"endpoint"`
	WindowDays     int             `yaml:"windowDays" json:"windowDays"`
	Timezone       string          `yaml:"timezone" json:"timezone"`
	ArtifactDir    string          `yaml:"artifactDir" json:"artifactDir"`
	ReuseArtifacts *bool           `yaml:"reuseArtifacts,omitempty" json:"reuseArtifacts,omitempty"`
	Workers        int             `yaml:"workers,omitempty" json:"workers,omitempty"`
	RequestTimeout string          `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty"`
	RunTimeout     string          `yaml:"runTimeout,omitempty" json:"runTimeout,omitempty"`
	LogLevel       string          `yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
	Retry          RetryPolicy     `yaml:"retry,omitempty" json:"retry,omitempty"`
	Breaker        BreakerConfig   `yaml:"breaker,omitempty" json:"breaker,omitempty"`
	Database       DatabaseConfig  `yaml:"database" json:"database"`
	Alerts         []AlertConfig   `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Telemetry      TelemetryConfig `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// ReuseArtifactsEnabled reports whether artifacts left by an earlier
// uncommitted run are reused instead of refetched. Defaults to true.
func (c *ProjectConfig) ReuseArtifactsEnabled() bool {
	return c.ReuseArtifacts == nil || *c.ReuseArtifacts
}

// DatabaseConfig configures the Postgres store.
type DatabaseConfig struct {
	DSN               string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Table             string `yaml:"table,omitempty" json:"table,omitempty"`
	PasswordSecretARN string `yaml:"passwordSecretArn,omitempty" json:"passwordSecretArn,omitempty"`
	AutoMigrate       bool   `yaml:"autoMigrate,omitempty" json:"autoMigrate,omitempty"`
}

// RetryPolicy configures fetch retries for transient failures.
type RetryPolicy struct {
	MaxAttempts       int               `yaml:"maxAttempts" json:"maxAttempts"`
	BackoffSeconds    float64           `yaml:"backoffSeconds" json:"backoffSeconds"`
	BackoffMultiplier float64           `yaml:"backoffMultiplier,omitempty" json:"backoffMultiplier,omitempty"`
	MaxBackoffSeconds float64           `yaml:"maxBackoffSeconds,omitempty" json:"maxBackoffSeconds,omitempty"`
	RetryableFailures []FailureCategory `yaml:"retryableFailures,omitempty" json:"retryableFailures,omitempty"`
}

// BreakerConfig configures the circuit breaker around the report endpoint.
type BreakerConfig struct {
	FailThreshold int    `yaml:"failThreshold,omitempty" json:"failThreshold,omitempty"`
	Cooldown      string `yaml:"cooldown,omitempty" json:"cooldown,omitempty"`
}

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType  `yaml:"type" json:"type"`
	URL      string     `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string     `yaml:"path,omitempty" json:"path,omitempty"`
	EventBus string     `yaml:"eventBus,omitempty" json:"eventBus,omitempty"`
	Source   string     `yaml:"source,omitempty" json:"source,omitempty"`
	MinLevel AlertLevel `yaml:"minLevel,omitempty" json:"minLevel,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export. An empty endpoint keeps
// the no-op providers.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	ServiceName  string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
	Insecure     bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}
