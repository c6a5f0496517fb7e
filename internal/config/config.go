package config

import "time"

type Config struct {
	Service     *ServiceConfig
	HTTP        *HTTPConfig
	Redis       *RedisConfig
	Postgres    *PostgresConfig
	Logger      *LoggerConfig
	Tracer      *TracerConfig
	WebSocket   *WebSocketConfig
	Relay       *RelayConfig
	Calls       *CallsConfig
	Presence    *PresenceConfig
	SecretToken string
	TokenTTL    time.Duration

	// MinPasswordEntropy enables the entropy check on signup when > 0.
	MinPasswordEntropy float64
}

type ServiceConfig struct {
	Name string
	Env  string
	Add  string
}

type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	SecureCookies   bool
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	ReadLimit       int64
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	SendBuffer      int
}

type RelayConfig struct {
	QueueSize int
}

type CallsConfig struct {
	ICEServers     []string
	ICEUsername    string
	ICECredential  string
	JournalStream  string
	JournalGroup   string
	JournalMaxSize int64
	// pending journal entries are retried after this long
	JournalReclaimIdle time.Duration
}

type PresenceConfig struct {
	HeartbeatInterval time.Duration
	LastSeenTTL       time.Duration
}
