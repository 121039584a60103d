package internal

import "time"

// Config is the full environment surface of the server binary.
type Config struct {
	Host string `env:"HOST,required=true"`
	Port int    `env:"PORT,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`

	BufferSize           int  `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int  `env:"CONNECTION_BUFFER_SIZE,required=true"`
	LimitMessages        *int `env:"LIMIT_MESSAGES"`
	SearchLimit          int  `env:"SEARCH_LIMIT,required=true"`

	SinkTimeout       time.Duration `env:"SINK_TIMEOUT,required=true"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,required=true"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL,required=true"`

	MirrorRetryMax  int           `env:"MIRROR_RETRY_MAX,required=true"`
	MirrorRetryBase time.Duration `env:"MIRROR_RETRY_BASE,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
}
