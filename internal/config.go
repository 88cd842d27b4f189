package internal

import "time"

type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	// When set, serves the read-only store inspector on this port.
	DebugPort *int `env:"DEBUG_PORT"`

	// Comma-separated "user:user" pairs seeding the friend graph, until the
	// social service feeds it.
	Friendships string `env:"FRIENDSHIPS"`

	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,required=true"`
}
