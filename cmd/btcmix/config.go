// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	"github.com/btcsuite/btcmix/coinjoin"
	"github.com/btcsuite/btcmix/internal/ledger"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "btcmix.conf"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "btcmix.log"
	defaultDBFilename     = "ledger.db"
	defaultLogLevel       = "info"

	dbBackendSQLite   = "sqlite"
	dbBackendPostgres = "postgres"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("btcmix", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
)

// config defines the configuration options for btcmix.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir string `short:"A" long:"appdata" description:"Application data directory"`
	LogDir     string `long:"logdir" description:"Directory to log output"`
	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	DBBackend string `long:"dbbackend" description:"Backend of the round ledger" choice:"sqlite" choice:"postgres"`
	DBPath    string `long:"dbpath" description:"Path of the SQLite round ledger"`
	PgDSN     string `long:"pgdsn" description:"Connection string of the PostgreSQL round ledger"`

	Trials   int `long:"trials" description:"Number of candidate solutions built per selection"`
	MinCoins int `long:"mincoins" description:"Lower bound of the per trial coin limit"`
	MaxCoins int `long:"maxcoins" description:"Upper bound of the per trial coin limit"`
	Workers  int `long:"workers" description:"Number of trials built concurrently"`
}

// defaultConfig returns a config populated with the default values.
func defaultConfig() config {
	return config{
		ConfigFile: defaultConfigFile,
		AppDataDir: defaultAppDataDir,
		DebugLevel: defaultLogLevel,
		DBBackend:  dbBackendSQLite,
		Trials:     coinjoin.DefaultTrials,
		MinCoins:   coinjoin.DefaultMinCoins,
		MaxCoins:   coinjoin.DefaultMaxCoins,
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly. An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") &&
		!strings.Contains(debugLevel, "=") {

		// Validate debug log level.
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", debugLevel)
		}

		// Change the logging level for all subsystems.
		setLogLevels(debugLevel)

		return nil
	}

	// Split the specified string into subsystem/level pairs while
	// detecting issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%v]",
				logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		// Validate subsystem.
		if _, exists := subsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems %v", subsysID,
				supportedSubsystems())
		}

		// Validate log level.
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", logLevel)
		}

		setLogLevel(subsysID, logLevel)
	}

	return nil
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	_, ok := btclog.LevelFromString(logLevel)
	return ok
}

// validate checks the option values and fills in the paths derived from the
// application data directory.
func (c *config) validate() error {
	c.AppDataDir = cleanAndExpandPath(c.AppDataDir)

	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.AppDataDir, defaultLogDirname)
	}
	c.LogDir = cleanAndExpandPath(c.LogDir)

	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.AppDataDir, defaultDBFilename)
	}
	c.DBPath = cleanAndExpandPath(c.DBPath)

	if c.DBBackend == dbBackendPostgres && c.PgDSN == "" {
		return errors.New("the postgres backend requires --pgdsn")
	}

	_, err := coinjoin.NewSelector(c.selectorConfig())

	return err
}

// selectorConfig returns the selector settings of the configuration.
func (c *config) selectorConfig() coinjoin.SelectorConfig {
	cfg := coinjoin.DefaultSelectorConfig()
	cfg.Trials = c.Trials
	cfg.MinCoins = c.MinCoins
	cfg.MaxCoins = c.MaxCoins
	cfg.Workers = c.Workers

	return cfg
}

// openLedger opens the round ledger of the configured backend. The returned
// closure releases the database.
func (c *config) openLedger(ctx context.Context) (ledger.Store, func(),
	error) {

	switch c.DBBackend {
	case dbBackendPostgres:
		db, err := ledger.OpenPostgres(ctx, c.PgDSN)
		if err != nil {
			return nil, nil, err
		}

		store, err := ledger.NewPostgresStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		return store, func() { db.Close() }, nil

	default:
		db, err := ledger.OpenSQLite(ctx, c.DBPath)
		if err != nil {
			return nil, nil, err
		}

		store, err := ledger.NewSQLiteStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		return store, func() { db.Close() }, nil
	}
}

// loadConfig initializes and parses the config using a config file and
// command line options, then runs the requested command.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//  5. Set up logging and execute the selected command
//
// The above results in btcmix functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options. Command line options always take
// precedence.
func loadConfig(ctx context.Context, args []string) error {
	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := defaultConfig()
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	_, _ = preParser.ParseArgs(args)

	cfg := defaultConfig()
	cfg.AppDataDir = preCfg.AppDataDir
	cfg.ConfigFile = preCfg.ConfigFile
	if preCfg.AppDataDir != defaultAppDataDir &&
		preCfg.ConfigFile == defaultConfigFile {

		cfg.ConfigFile = filepath.Join(
			preCfg.AppDataDir, defaultConfigFilename,
		)
	}

	parser := newParser(ctx, &cfg)

	// Load additional config from file. A missing default config file is
	// not an error.
	configFile := cleanAndExpandPath(cfg.ConfigFile)
	err := flags.NewIniParser(parser).ParseFile(configFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) ||
			preCfg.ConfigFile != defaultConfigFile {

			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	_, err = parser.ParseArgs(args)

	return err
}

// newParser returns the command line parser of btcmix. The selected command
// runs once the configuration is validated and logging is set up.
func newParser(ctx context.Context, cfg *config) *flags.Parser {
	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)

	env := &cmdEnv{ctx: ctx, cfg: cfg, out: os.Stdout}
	for _, cmd := range commands(env) {
		_, err := parser.AddCommand(
			cmd.name, cmd.short, cmd.long, cmd.data,
		)
		if err != nil {
			// The command definitions are static.
			panic(err)
		}
	}

	parser.CommandHandler = func(command flags.Commander,
		args []string) error {

		if command == nil {
			return nil
		}

		if err := setup(cfg); err != nil {
			return err
		}

		return command.Execute(args)
	}

	return parser
}

// setup validates the configuration and initializes logging.
func setup(cfg *config) error {
	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	if err := cfg.validate(); err != nil {
		return err
	}

	err := initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	if err != nil {
		return err
	}

	return parseAndSetDebugLevels(cfg.DebugLevel)
}
