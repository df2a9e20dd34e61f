package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vireopay/fundflow/db"
	"github.com/vireopay/fundflow/gateway"
	"github.com/vireopay/fundflow/internal"
)

const (
	defaultAPIHost          = "0.0.0.0"
	defaultAPIPort          = 9090
	defaultLogLevel         = "info"
	defaultLogOutput        = "stdout"
	defaultDatadir          = ".fundflow" // Will be prefixed with user's home directory
	defaultGatewayTimeout   = 30 * time.Second
	defaultWebhookTimeout   = 30 * time.Second
	defaultNECTimeout       = time.Minute
	defaultFTTimeout        = 60 * time.Minute
	defaultTSQDelay         = 5 * time.Minute
	defaultTSQAttempts      = 3
	defaultReversalAttempts = 3
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

// bankCodeRx matches the six digit institution codes of the gateway network.
var bankCodeRx = regexp.MustCompile(`^\d{6}$`)

// Config holds the application configuration
type Config struct {
	Gateway GatewayConfig
	API     APIConfig
	Engine  EngineConfig
	Webhook WebhookConfig
	Log     LogConfig
	Datadir string
	DBType  string `mapstructure:"dbtype"`
}

// GatewayConfig holds the clearing gateway connection configuration
type GatewayConfig struct {
	URL         string        `mapstructure:"url"`
	CallbackURL string        `mapstructure:"callbackurl"`
	BankCode    string        `mapstructure:"bankcode"`
	TSQCode     string        `mapstructure:"tsqcode"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	AdminToken string `mapstructure:"admintoken"`
}

// EngineConfig holds the transaction engine tunables
type EngineConfig struct {
	NECTimeout       time.Duration `mapstructure:"nectimeout"`
	FTTimeout        time.Duration `mapstructure:"fttimeout"`
	TSQDelay         time.Duration `mapstructure:"tsqdelay"`
	TSQAttempts      int           `mapstructure:"tsqattempts"`
	ReversalAttempts int           `mapstructure:"reversalattempts"`
}

// WebhookConfig holds the institution webhook delivery configuration
type WebhookConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"`
	DisableAPI bool   `mapstructure:"disableapi"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	// Set up default values
	// Get user's home directory for default datadir
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
	}
	defaultDatadirPath := filepath.Join(userHomeDir, defaultDatadir)

	v.SetDefault("gateway.timeout", defaultGatewayTimeout)
	v.SetDefault("gateway.tsqcode", gateway.FunctionTSQDefault)
	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("engine.nectimeout", defaultNECTimeout)
	v.SetDefault("engine.fttimeout", defaultFTTimeout)
	v.SetDefault("engine.tsqdelay", defaultTSQDelay)
	v.SetDefault("engine.tsqattempts", defaultTSQAttempts)
	v.SetDefault("engine.reversalattempts", defaultReversalAttempts)
	v.SetDefault("webhook.timeout", defaultWebhookTimeout)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("datadir", defaultDatadirPath)
	v.SetDefault("dbtype", db.TypePebble)

	// Configure flags
	flag.StringP("gateway.url", "g", "", "clearing gateway base URL (required)")
	flag.StringP("gateway.callbackurl", "c", "", "public URL of this node's gateway callback endpoint (required)")
	flag.StringP("gateway.bankcode", "b", "", "six digit institution code of this node on the gateway network (required)")
	flag.Duration("gateway.timeout", defaultGatewayTimeout, "timeout for gateway HTTP exchanges")
	flag.String("gateway.tsqcode", gateway.FunctionTSQDefault,
		fmt.Sprintf("status query function code (%s, or %s on networks that use it)",
			gateway.FunctionTSQDefault, gateway.FunctionTSQAlt))
	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("api.admintoken", "", "bearer token for the registry admin endpoints (empty disables them)")
	flag.Duration("engine.nectimeout", defaultNECTimeout, "processing deadline of a name enquiry")
	flag.Duration("engine.fttimeout", defaultFTTimeout, "processing deadline of a funds transfer")
	flag.Duration("engine.tsqdelay", defaultTSQDelay, "delay before an in-doubt leg is status-queried (i.e 5m or 1h)")
	flag.Int("engine.tsqattempts", defaultTSQAttempts, "status query budget per in-doubt leg")
	flag.Int("engine.reversalattempts", defaultReversalAttempts, "reversal submissions before manual intervention is flagged")
	flag.Duration("webhook.timeout", defaultWebhookTimeout, "timeout for institution webhook deliveries")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error, fatal)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.Bool("log.disableapi", false, "disable API request logging")
	flag.StringP("datadir", "d", defaultDatadirPath, "data directory for database files")
	flag.StringP("dbType", "t", db.TypePebble,
		fmt.Sprintf("database backend (%s or %s)", db.TypePebble, db.TypeMongo))
	flag.Bool("saveConfig", false, "persist the effective configuration to <datadir>/fundflow.yml")

	// Configure usage information
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fundflow-node v%s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: fundflow-node [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dashes (-) and dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, FUNDFLOW_GATEWAY_URL or FUNDFLOW_API_HOST\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start against a local gateway\n")
		fmt.Fprintf(os.Stderr, "  fundflow-node --gateway.url=http://localhost:8080 \\\n")
		fmt.Fprintf(os.Stderr, "      --gateway.callbackurl=http://localhost:9090/v1/gateway/callback --gateway.bankcode=000099\n\n")
		fmt.Fprintf(os.Stderr, "  # Enable the registry admin endpoints\n")
		fmt.Fprintf(os.Stderr, "  fundflow-node --gateway.url=https://gateway.example --gateway.callbackurl=https://node.example/v1/gateway/callback \\\n")
		fmt.Fprintf(os.Stderr, "      --gateway.bankcode=000099 --api.admintoken=changeme\n")
	}

	// Parse flags
	flag.CommandLine.SortFlags = false
	flag.Parse()

	// Configure Viper to use environment variables
	v.SetEnvPrefix("FUNDFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind flags to Viper
	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	// Create config struct
	cfg := &Config{}

	// Unmarshal configuration into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Persist the effective configuration when requested
	if v.GetBool("saveConfig") {
		if err := os.MkdirAll(cfg.Datadir, 0o750); err != nil {
			return nil, fmt.Errorf("error creating data directory: %w", err)
		}
		path := filepath.Join(cfg.Datadir, "fundflow.yml")
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("error saving config to %s: %w", path, err)
		}
	}

	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	// Validate required fields
	if cfg.Gateway.URL == "" {
		return fmt.Errorf("gateway URL is required (use --gateway.url flag or FUNDFLOW_GATEWAY_URL environment variable)")
	}
	if cfg.Gateway.CallbackURL == "" {
		return fmt.Errorf("gateway callback URL is required (use --gateway.callbackurl flag or FUNDFLOW_GATEWAY_CALLBACKURL environment variable)")
	}
	if !bankCodeRx.MatchString(cfg.Gateway.BankCode) {
		return fmt.Errorf("bank code must be 6 digits, got %q (use --gateway.bankcode flag or FUNDFLOW_GATEWAY_BANKCODE environment variable)",
			cfg.Gateway.BankCode)
	}
	if cfg.DBType != db.TypePebble && cfg.DBType != db.TypeMongo {
		return fmt.Errorf("unsupported database type %q (use %s or %s)",
			cfg.DBType, db.TypePebble, db.TypeMongo)
	}
	return nil
}
