package main

import (
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel  = "info"
	defaultDBTimeout = 60 * time.Second
)

// config defines the configuration options for scriptnest.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	Classify    string `long:"classify" description:"Classify the given hex-encoded output script and print its type"`
	Extract     string `long:"extract" description:"Print the public keys of the given hex-encoded lock script"`
	Policy      string `long:"policy" description:"Print the policy expression of the given hex-encoded lock script"`
	Resolve     string `long:"resolve" description:"Resolve the given hex-encoded output script to its terminal lock script through the pre-image store"`
	Store       string `long:"store" description:"Add the given hex-encoded script to the pre-image store"`

	// Pre-image store options
	DB        string        `long:"db" description:"Path of the pre-image store database -- Required by --resolve and --store"`
	DBTimeout time.Duration `long:"dbtimeout" description:"The timeout value to use when opening the pre-image store"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
}

// loadConfig initializes and parses the config using command line options.
func loadConfig() (*config, error) {
	cfg := config{
		DebugLevel: defaultLogLevel,
		DBTimeout:  defaultDBTimeout,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if !validLogLevel(cfg.DebugLevel) {
		err := fmt.Errorf("the specified debug level [%v] is invalid",
			cfg.DebugLevel)
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	setLogLevels(cfg.DebugLevel)

	if (cfg.Resolve != "" || cfg.Store != "") && cfg.DB == "" {
		err := fmt.Errorf("--resolve and --store require --db")
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	return &cfg, nil
}
