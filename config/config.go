// Package config loads and validates the server's configuration surface:
// the enumerated tunables of the core (header/body limits, spill and gzip
// thresholds, timeouts, endpoints) plus the logging level the CLI feeds to
// the log package. Values come from defaults, an optional config file and
// pflag-bound command-line flags, merged through viper in that order.
package config

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/nanovarix/httpcore"
)

// Certificate is one PEM cert/key pair for a secure endpoint. ServerName
// selects it by SNI; the pair with an empty ServerName is the fallback
// when the ClientHello carries no (or an unrecognized) server name.
type Certificate struct {
	ServerName string `mapstructure:"server_name"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
}

// Endpoint is one {bind_address:port, secure} tuple. Secure endpoints
// need at least one Certificate.
type Endpoint struct {
	Address      string        `mapstructure:"address"`
	Secure       bool          `mapstructure:"secure"`
	Certificates []Certificate `mapstructure:"certificates"`
}

// Config mirrors the server's tunables as a flat, file-loadable struct.
type Config struct {
	Endpoints []Endpoint `mapstructure:"endpoints"`

	Name string `mapstructure:"name"`

	Concurrency   int `mapstructure:"concurrency"`
	MaxConnsPerIP int `mapstructure:"max_conns_per_ip"`

	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"`

	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`

	SpillToFileThreshold int64  `mapstructure:"spill_to_file_threshold"`
	TempDir              string `mapstructure:"temp_dir"`

	GzipAutoThreshold int `mapstructure:"gzip_auto_threshold"`
	GzipInMemoryMax   int `mapstructure:"gzip_inmemory_max"`

	DefaultContentType string `mapstructure:"default_content_type"`

	PropagateExceptions bool `mapstructure:"propagate_exceptions"`
	OutputExceptionInfo bool `mapstructure:"output_exception_info"`

	LogLevel string `mapstructure:"log_level"`
}

// BindFlags registers the command-line surface on fs. Flag names use
// dashes; flagKeys maps them back onto the underscore config keys.
func BindFlags(fs *pflag.FlagSet) {
	fs.StringSlice("listen", []string{":8080"}, "address:port to listen on (repeatable)")
	fs.String("name", "httpcore", "Server header value")
	fs.Int("concurrency", 0, "max concurrent connections (0 = default)")
	fs.Int("max-conns-per-ip", 0, "max connections per client IP (0 = unlimited)")
	fs.Duration("read-timeout", 0, "per-read socket deadline")
	fs.Duration("write-timeout", 0, "per-write socket deadline")
	fs.Duration("keep-alive-timeout", 120*time.Second, "idle keep-alive deadline")
	fs.Int("max-header-bytes", 8*1024, "reject requests whose headers exceed this")
	fs.Int("max-body-bytes", 64<<20, "reject request bodies larger than this with 413")
	fs.Int64("spill-to-file-threshold", 1<<20, "bodies at or above this size spill to a temp file")
	fs.String("temp-dir", "", "directory for spilled bodies (default: OS temp dir)")
	fs.Int("gzip-auto-threshold", 4096, "sample size for the gzip autodetect policy")
	fs.Int("gzip-inmemory-max", 4<<20, "bodies of known length below this gzip fully in memory")
	fs.String("default-content-type", "", "Content-Type for responses that don't set one")
	fs.Bool("propagate-exceptions", false, "let handler panics unwind instead of rendering a 500")
	fs.Bool("output-exception-info", false, "include error chains in default error bodies")
	fs.String("log-level", "info", "zerolog level (trace..panic)")
	fs.String("config", "", "path to a config file (yaml/toml/json)")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("name", "httpcore")
	v.SetDefault("keep_alive_timeout", 120*time.Second)
	v.SetDefault("max_header_bytes", 8*1024)
	v.SetDefault("max_body_bytes", 64<<20)
	v.SetDefault("spill_to_file_threshold", int64(1<<20))
	v.SetDefault("gzip_auto_threshold", 4096)
	v.SetDefault("gzip_inmemory_max", 4<<20)
	v.SetDefault("log_level", "info")
}

// flagKeys maps each pflag name to its config-file key.
var flagKeys = map[string]string{
	"name":                    "name",
	"concurrency":             "concurrency",
	"max-conns-per-ip":        "max_conns_per_ip",
	"read-timeout":            "read_timeout",
	"write-timeout":           "write_timeout",
	"keep-alive-timeout":      "keep_alive_timeout",
	"max-header-bytes":        "max_header_bytes",
	"max-body-bytes":          "max_body_bytes",
	"spill-to-file-threshold": "spill_to_file_threshold",
	"temp-dir":                "temp_dir",
	"gzip-auto-threshold":     "gzip_auto_threshold",
	"gzip-inmemory-max":       "gzip_inmemory_max",
	"default-content-type":    "default_content_type",
	"propagate-exceptions":    "propagate_exceptions",
	"output-exception-info":   "output_exception_info",
	"log-level":               "log_level",
}

// Load merges defaults, the config file named by fs's --config flag (if
// any) and the flags themselves, then unmarshals and validates. fs must
// already be parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path, err := fs.GetString("config"); err == nil && path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}

	for flagName, key := range flagKeys {
		if f := fs.Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: binding flag %q: %w", flagName, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	// --listen flags add plaintext endpoints on top of whatever the config
	// file declared; a bare --listen with a file present would otherwise
	// silently shadow the file's secure endpoints.
	if listens, err := fs.GetStringSlice("listen"); err == nil && fs.Changed("listen") {
		for _, addr := range listens {
			cfg.Endpoints = append(cfg.Endpoints, Endpoint{Address: addr})
		}
	} else if len(cfg.Endpoints) == 0 {
		for _, addr := range listens {
			cfg.Endpoints = append(cfg.Endpoints, Endpoint{Address: addr})
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects duplicate endpoint addresses and secure endpoints
// without certificates, the two startup-time errors the listener shell
// can't recover from.
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("config: no endpoints configured")
	}
	seen := make(map[string]bool, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		if ep.Address == "" {
			return fmt.Errorf("config: endpoint with empty address")
		}
		if seen[ep.Address] {
			return fmt.Errorf("config: duplicate endpoint address %q", ep.Address)
		}
		seen[ep.Address] = true
		if ep.Secure && len(ep.Certificates) == 0 {
			return fmt.Errorf("config: secure endpoint %q has no certificates", ep.Address)
		}
		for _, cert := range ep.Certificates {
			if cert.CertFile == "" || cert.KeyFile == "" {
				return fmt.Errorf("config: endpoint %q: certificate needs both cert_file and key_file", ep.Address)
			}
		}
	}
	if c.MaxHeaderBytes < 0 || c.MaxBodyBytes < 0 || c.SpillToFileThreshold < 0 {
		return fmt.Errorf("config: size limits must be non-negative")
	}
	return nil
}

// resolver loads ep's certificate files and builds the SNI-aware resolver
// the secure listener hands to the TLS handshake.
func (ep Endpoint) resolver() (httpcore.CertificateResolver, error) {
	var def *tls.Certificate
	named := make(map[string]tls.Certificate, len(ep.Certificates))
	for _, c := range ep.Certificates {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: endpoint %q: loading %q: %w", ep.Address, c.CertFile, err)
		}
		if c.ServerName == "" {
			cert := cert
			def = &cert
			continue
		}
		named[c.ServerName] = cert
	}
	if len(named) == 0 && def != nil {
		return httpcore.StaticCertificateResolver(*def), nil
	}
	return httpcore.SNICertificateResolver(named, def), nil
}

// ServerConfig converts c into the core's Config, loading certificate
// files for secure endpoints. handler and logger are supplied by the
// embedder; everything else comes from c.
func (c *Config) ServerConfig(handler httpcore.RequestHandler, logger httpcore.Logger) (httpcore.Config, error) {
	sc := httpcore.Config{
		Handler:              handler,
		Logger:               logger,
		Name:                 c.Name,
		Concurrency:          c.Concurrency,
		MaxConnsPerIP:        c.MaxConnsPerIP,
		ReadTimeout:          c.ReadTimeout,
		WriteTimeout:         c.WriteTimeout,
		KeepAliveTimeout:     c.KeepAliveTimeout,
		MaxHeaderBytes:       c.MaxHeaderBytes,
		MaxBodyBytes:         c.MaxBodyBytes,
		SpillToFileThreshold: c.SpillToFileThreshold,
		TempDir:              c.TempDir,
		GzipAutoThreshold:    c.GzipAutoThreshold,
		GzipInMemoryMax:      c.GzipInMemoryMax,
		DefaultContentType:   c.DefaultContentType,
		PropagateExceptions:  c.PropagateExceptions,
		OutputExceptionInfo:  c.OutputExceptionInfo,
	}
	for _, ep := range c.Endpoints {
		cep := httpcore.Endpoint{Address: ep.Address, Secure: ep.Secure}
		if ep.Secure {
			r, err := ep.resolver()
			if err != nil {
				return httpcore.Config{}, err
			}
			cep.CertResolver = r
		}
		sc.Endpoints = append(sc.Endpoints, cep)
	}
	return sc, nil
}
