package client

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/keboola/go-restclient/pkg/trace"
)

// Config of the Client, it can be loaded by LoadConfig.
type Config struct {
	BaseURL   string            `mapstructure:"baseUrl" yaml:"baseUrl"`
	UserAgent string            `mapstructure:"userAgent" yaml:"userAgent"`
	Headers   map[string]string `mapstructure:"headers" yaml:"headers"`
	Transport TransportConfig   `mapstructure:"transport" yaml:"transport"`
	// Trace enables a tracer writing to stdout: "log" or "dump".
	Trace string `mapstructure:"trace" yaml:"trace"`
}

// TransportConfig configures the transport shared by all requests of the Client.
type TransportConfig struct {
	DialTimeout           time.Duration `mapstructure:"dialTimeout" yaml:"dialTimeout"`
	KeepAlive             time.Duration `mapstructure:"keepAlive" yaml:"keepAlive"`
	TLSHandshakeTimeout   time.Duration `mapstructure:"tlsHandshakeTimeout" yaml:"tlsHandshakeTimeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"responseHeaderTimeout" yaml:"responseHeaderTimeout"`
	MaxConnectionsPerHost int           `mapstructure:"maxConnectionsPerHost" yaml:"maxConnectionsPerHost"`
	HTTP2Only             bool          `mapstructure:"http2Only" yaml:"http2Only"`
}

const (
	TraceLog  = "log"
	TraceDump = "dump"
)

// DefaultTransportConfig returns the configuration of the DefaultTransport.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		DialTimeout:           DialTimeout,
		KeepAlive:             KeepAlive,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		MaxConnectionsPerHost: MaxConnectionsPerHost,
	}
}

// ApplyDefaults sets default values of unset fields.
func (c *Config) ApplyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	defaults := DefaultTransportConfig()
	if c.Transport.DialTimeout == 0 {
		c.Transport.DialTimeout = defaults.DialTimeout
	}
	if c.Transport.KeepAlive == 0 {
		c.Transport.KeepAlive = defaults.KeepAlive
	}
	if c.Transport.TLSHandshakeTimeout == 0 {
		c.Transport.TLSHandshakeTimeout = defaults.TLSHandshakeTimeout
	}
	if c.Transport.ResponseHeaderTimeout == 0 {
		c.Transport.ResponseHeaderTimeout = defaults.ResponseHeaderTimeout
	}
	if c.Transport.MaxConnectionsPerHost == 0 {
		c.Transport.MaxConnectionsPerHost = defaults.MaxConnectionsPerHost
	}
}

// Validate returns all configuration errors.
func (c Config) Validate() error {
	errs := &multierror.Error{}
	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil {
			errs = multierror.Append(errs, fmt.Errorf(`"baseUrl" is not valid: %w`, err))
		} else if !u.IsAbs() {
			errs = multierror.Append(errs, fmt.Errorf(`"baseUrl" must be an absolute URL, found "%s"`, c.BaseURL))
		}
	}
	if c.Transport.DialTimeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf(`"transport.dialTimeout" must not be negative`))
	}
	if c.Transport.KeepAlive < 0 {
		errs = multierror.Append(errs, fmt.Errorf(`"transport.keepAlive" must not be negative`))
	}
	if c.Transport.TLSHandshakeTimeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf(`"transport.tlsHandshakeTimeout" must not be negative`))
	}
	if c.Transport.ResponseHeaderTimeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf(`"transport.responseHeaderTimeout" must not be negative`))
	}
	if c.Transport.MaxConnectionsPerHost < 0 {
		errs = multierror.Append(errs, fmt.Errorf(`"transport.maxConnectionsPerHost" must not be negative`))
	}
	switch c.Trace {
	case "", TraceLog, TraceDump:
	default:
		errs = multierror.Append(errs, fmt.Errorf(`"trace" must be one of "%s", "%s", found "%s"`, TraceLog, TraceDump, c.Trace))
	}
	if len(errs.Errors) == 1 {
		return errs.Errors[0]
	}
	return errs.ErrorOrNil()
}

// LoadConfig reads the Config from the viper key.
// An empty key reads the whole viper configuration.
func LoadConfig(v *viper.Viper, key string) (Config, error) {
	var cfg Config
	var err error
	if key == "" {
		err = v.Unmarshal(&cfg)
	} else {
		err = v.UnmarshalKey(key, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("cannot load client config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("client config is not valid: %w", err)
	}
	return cfg, nil
}

// NewFromConfig creates a Client from the Config.
func NewFromConfig(cfg Config) (Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Client{}, fmt.Errorf("client config is not valid: %w", err)
	}

	c := New().
		WithTransport(NewTransport(cfg.Transport)).
		WithUserAgent(cfg.UserAgent).
		WithHeaders(cfg.Headers)
	if cfg.BaseURL != "" {
		c = c.WithBaseURL(cfg.BaseURL)
	}
	switch cfg.Trace {
	case TraceLog:
		c = c.AndTrace(trace.LogTracer(os.Stdout))
	case TraceDump:
		c = c.AndTrace(trace.DumpTracer(os.Stdout))
	}
	return c, nil
}
