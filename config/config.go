// Package config loads vectord/vectorctl's runtime configuration the way
// lnd.go's loadConfig does: defaults, then command-line flags, then an
// optional INI file, with flags taking precedence over the file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "vectord.conf"
	defaultDataDirname    = "data"

	// BackendBolt selects the bbolt-backed storage.Store.
	BackendBolt = "bolt"
	// BackendMemory selects the in-memory storage.Store, for tests and
	// throwaway nodes.
	BackendMemory = "memory"

	defaultTimeout     = 30 * time.Second
	defaultMaxRetries  = 3
	defaultDispute     = uint64(3600)
)

// Config is vectord's full set of startup parameters. Struct tags are
// consumed directly by go-flags, matching lnd.go's config struct.
type Config struct {
	ConfigFile string `long:"configfile" description:"Path to configuration file"`
	DataDir    string `long:"datadir" description:"Directory to store channel state in"`

	RPCListen string `long:"rpclisten" description:"Control RPC address (unused: vectord opens no RPC listener)"`

	StorageBackend string `long:"storage" description:"Storage backend: bolt or memory" choice:"bolt" choice:"memory"`

	ChainRPC           string `long:"chainrpc" description:"EVM JSON-RPC endpoint used by the chain reader"`
	AdjudicatorAddress string `long:"adjudicator" description:"Address of the on-chain adjudicator contract"`

	SelfIdentifier         string `long:"self" description:"This node's public identifier"`
	CounterpartyIdentifier string `long:"counterparty" description:"The counterparty's public identifier"`

	DisputeWindow uint64 `long:"disputewindow" description:"Default channel dispute-window timeout, in seconds"`

	MessagingTimeout    time.Duration `long:"msgtimeout" description:"Per-round messaging timeout"`
	MessagingMaxRetries int           `long:"msgretries" description:"Per-round messaging retry count"`

	DebugLevel string `long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`
}

// DefaultConfig returns a Config populated with vectord's defaults, the way
// lnd.go's defaultConfig does before flag/file parsing overrides it.
func DefaultConfig() Config {
	return Config{
		ConfigFile:          defaultConfigFilename,
		DataDir:             defaultDataDirname,
		RPCListen:           "localhost:10080",
		StorageBackend:      BackendBolt,
		DisputeWindow:       defaultDispute,
		MessagingTimeout:    defaultTimeout,
		MessagingMaxRetries: defaultMaxRetries,
		DebugLevel:          "info",
	}
}

// LoadConfig parses args (normally os.Args[1:]) into a Config: defaults,
// then an optional INI file at the resulting ConfigFile path (if present),
// then the command-line flags again so they take final precedence —
// mirroring lnd.go's loadConfig two-pass parse.
func LoadConfig(args []string) (*Config, error) {
	cfg := DefaultConfig()

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfgPath := CleanAndExpandPath(preCfg.ConfigFile)
	if _, err := os.Stat(cfgPath); err == nil {
		fileParser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(fileParser).ParseFile(cfgPath); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", cfgPath, err)
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)

	if cfg.StorageBackend != BackendBolt && cfg.StorageBackend != BackendMemory {
		return nil, fmt.Errorf("config: unknown storage backend %q", cfg.StorageBackend)
	}
	if cfg.SelfIdentifier == "" {
		return nil, fmt.Errorf("config: --self is required")
	}
	if cfg.SelfIdentifier == cfg.CounterpartyIdentifier {
		return nil, fmt.Errorf("config: --self and --counterparty must differ")
	}

	return &cfg, nil
}

// CleanAndExpandPath expands a leading ~ to the user's home directory and
// cleans the result, the way lnd.go's cleanAndExpandPath does for every
// path-valued config field.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir := filepath.Clean(os.Getenv("HOME"))
		if homeDir != "" {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
