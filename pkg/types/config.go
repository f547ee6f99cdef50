package types

// Config represents the main configuration for the botmind daemon.
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Store       StoreConfig       `yaml:"store" toml:"store"`
	Crypto      CryptoConfig      `yaml:"crypto" toml:"crypto"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	Scheduler   SchedulerConfig   `yaml:"scheduler" toml:"scheduler"`
	DecisionLog DecisionLogConfig `yaml:"decision_log" toml:"decision_log"`
	Remote      RemoteConfig      `yaml:"remote" toml:"remote"`
	Bots        []BotConfig       `yaml:"bots" toml:"bots"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

// StoreConfig defines SQLite history settings.
type StoreConfig struct {
	Path string `yaml:"path" toml:"path"` // Path to the SQLite file; empty disables persistence
}

// CryptoConfig defines encryption settings.
type CryptoConfig struct {
	IdentityPath   string `yaml:"identity_path" toml:"identity_path"`     // Path to age identity file
	EncryptHistory bool   `yaml:"encrypt_history" toml:"encrypt_history"` // Encrypt archived task parameters
}

// AuthConfig defines principal authentication for the API.
type AuthConfig struct {
	Enabled         bool              `yaml:"enabled" toml:"enabled"`
	JWTSecret       string            `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTLMinutes int               `yaml:"token_ttl_minutes" toml:"token_ttl_minutes"`
	Principals      map[string]string `yaml:"principals" toml:"principals"` // name -> bcrypt hash
}

// SchedulerConfig defines per-bot scheduling settings.
type SchedulerConfig struct {
	TickIntervalMS         int `yaml:"tick_interval_ms" toml:"tick_interval_ms"`
	HistoryLimit           int `yaml:"history_limit" toml:"history_limit"`
	CoordinatorCapacity    int `yaml:"coordinator_capacity" toml:"coordinator_capacity"`
	ApprovalTimeoutSeconds int `yaml:"approval_timeout_seconds" toml:"approval_timeout_seconds"`
}

// DecisionLogConfig defines the compressed decision log.
type DecisionLogConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Dir     string `yaml:"dir" toml:"dir"`
}

// RemoteConfig lists command kinds whose bodies run in an external worker.
type RemoteConfig struct {
	Kinds []CommandKind `yaml:"kinds" toml:"kinds"`
}

// BotConfig declares a bot spawned at startup.
type BotConfig struct {
	Name    string   `yaml:"name" toml:"name"`
	Owner   string   `yaml:"owner" toml:"owner"`
	World   string   `yaml:"world" toml:"world"`
	Roles   []string `yaml:"roles" toml:"roles"`
	Trusted []string `yaml:"trusted" toml:"trusted"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Store: StoreConfig{
			Path: "./botmind.db",
		},
		Crypto: CryptoConfig{
			IdentityPath:   "./botmind.key",
			EncryptHistory: false,
		},
		Auth: AuthConfig{
			Enabled:         false,
			TokenTTLMinutes: 24 * 60,
		},
		Scheduler: SchedulerConfig{
			TickIntervalMS:         50,
			HistoryLimit:           100,
			CoordinatorCapacity:    32,
			ApprovalTimeoutSeconds: 60,
		},
		DecisionLog: DecisionLogConfig{
			Enabled: false,
			Dir:     "./decisions",
		},
	}
}
