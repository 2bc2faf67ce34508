package views

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

// Config is the file form of a server built on this package.
type Config struct {
	Addr            string          `yaml:"addr"`
	LogLevel        string          `yaml:"log_level"`
	BodyLimit       int64           `yaml:"body_limit"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	RateLimit       RateLimitBlock  `yaml:"rate_limit"`
	CORS            CORSBlock       `yaml:"cors"`
	SecureHeaders   SecureBlock     `yaml:"secure_headers"`
	Websocket       WebsocketConfig `yaml:"websocket"`
}

// SecureBlock turns on the SecureHeaders middleware. HSTSMaxAge is in
// seconds; zero leaves Strict-Transport-Security off.
type SecureBlock struct {
	Enabled    bool `yaml:"enabled"`
	HSTSMaxAge int  `yaml:"hsts_max_age"`
}

// CORSBlock enables the CORS middleware when AllowedOrigins is set.
type CORSBlock struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// RateLimitBlock configures per-client request limiting. Zero Rate disables it.
type RateLimitBlock struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// WebsocketConfig configures websocket views.
type WebsocketConfig struct {
	ReadBufferSize  int      `yaml:"read_buffer_size"`
	WriteBufferSize int      `yaml:"write_buffer_size"`
	ReadLimit       int64    `yaml:"read_limit"`
	MessageRate     float64  `yaml:"message_rate"`
	MessageBurst    int      `yaml:"message_burst"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		BodyLimit:       1 << 20,
		ShutdownTimeout: 30 * time.Second,
		Websocket: WebsocketConfig{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			ReadLimit:       1 << 16,
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path) //nolint:gosec // operator-provided path
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	if c.BodyLimit < 0 {
		return errors.New("body_limit must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("shutdown_timeout must not be negative")
	}
	if c.RateLimit.Rate < 0 {
		return errors.New("rate_limit.rate must not be negative")
	}
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst < 1 {
		return errors.New("rate_limit.burst must be at least 1")
	}
	if c.CORS.MaxAge < 0 {
		return errors.New("cors.max_age must not be negative")
	}
	if c.SecureHeaders.HSTSMaxAge < 0 {
		return errors.New("secure_headers.hsts_max_age must not be negative")
	}
	ws := c.Websocket
	if ws.ReadBufferSize < 0 || ws.WriteBufferSize < 0 {
		return errors.New("websocket buffer sizes must not be negative")
	}
	if ws.ReadLimit < 0 {
		return errors.New("websocket.read_limit must not be negative")
	}
	if ws.MessageRate < 0 {
		return errors.New("websocket.message_rate must not be negative")
	}
	for _, o := range ws.AllowedOrigins {
		if o == "*" {
			continue
		}
		if _, err := url.Parse(o); err != nil {
			return errors.Wrapf(err, "websocket.allowed_origins %q", o)
		}
	}
	return nil
}

// Level returns the parsed log level, info if unset.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// RouterOptions returns the router options the config implies.
func (c Config) RouterOptions(logger zerolog.Logger) []RouterOption {
	opts := []RouterOption{WithLogger(logger)}
	if c.ShutdownTimeout > 0 {
		opts = append(opts, WithShutdownTimeout(c.ShutdownTimeout))
	}
	return opts
}

// Middleware returns the global middleware stack the config implies:
// recovery, request id, access log, then security headers, CORS, rate and
// body limits if set.
func (c Config) Middleware(logger zerolog.Logger) []Middleware {
	mw := []Middleware{
		Recovery(logger),
		RequestID(),
		Logger(logger),
	}
	if c.SecureHeaders.Enabled {
		mw = append(mw, SecureHeaders(SecureHeadersConfig{
			ContentTypeNosniff: true,
			FrameDeny:          true,
			HSTSMaxAge:         c.SecureHeaders.HSTSMaxAge,
			ReferrerPolicy:     "strict-origin-when-cross-origin",
		}))
	}
	if len(c.CORS.AllowedOrigins) > 0 {
		mw = append(mw, CORS(CORSConfig{
			AllowOrigins:     c.CORS.AllowedOrigins,
			AllowHeaders:     []string{"Content-Type", "Authorization", "X-Request-ID"},
			AllowCredentials: c.CORS.AllowCredentials,
			MaxAge:           c.CORS.MaxAge,
		}))
	}
	if c.RateLimit.Rate > 0 {
		mw = append(mw, RateLimit(RateLimitConfig{
			Rate:  c.RateLimit.Rate,
			Burst: c.RateLimit.Burst,
		}))
	}
	if c.BodyLimit > 0 {
		mw = append(mw, BodyLimit(c.BodyLimit))
	}
	return mw
}

// SocketOptions returns the websocket view options the config implies.
func (c Config) SocketOptions(logger zerolog.Logger) []SocketOption {
	ws := c.Websocket
	opts := []SocketOption{
		WithUpgrader(websocket.Upgrader{
			ReadBufferSize:  ws.ReadBufferSize,
			WriteBufferSize: ws.WriteBufferSize,
			CheckOrigin:     originChecker(ws.AllowedOrigins),
		}),
		WithSocketLogger(logger),
	}
	if ws.ReadLimit > 0 {
		opts = append(opts, WithReadLimit(ws.ReadLimit))
	}
	if ws.MessageRate > 0 {
		opts = append(opts, WithMessageRate(rate.Limit(ws.MessageRate), ws.MessageBurst))
	}
	return opts
}

// originChecker allows the listed origins. An empty list keeps the
// upgrader's same-origin check; "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}
