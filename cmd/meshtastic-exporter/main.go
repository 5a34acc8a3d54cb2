// meshtastic-exporter reads telemetry from a Meshtastic radio over TCP or a
// serial port and exposes it as Prometheus metrics.
//
// Exit codes: 0 on a clean shutdown, 1 for configuration or startup
// failures, 2 when the device link is lost.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"meshtastic-exporter/internal/bridge"
	"meshtastic-exporter/internal/config"
)

const (
	exitOK       = 0
	exitStartup  = 1
	exitLinkLost = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var (
		configPath  string
		logLevel    string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("meshtastic-exporter", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to the YAML config file (default $CONFIG_FILE_PATH or "+config.DefaultPath+")")
	flagSet.StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	flagSet.BoolVar(&showVersion, "version", false, "print the version and exit")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitStartup
	}
	if showVersion {
		fmt.Fprintf(stdout, "meshtastic-exporter %s\n", config.Version)
		return exitOK
	}

	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		fmt.Fprintf(stderr, "error: load config: %v\n", err)
		return exitStartup
	}
	if logLevel != "" {
		cfg.LogLevel = strings.ToLower(logLevel)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitStartup
		}
	}

	logger := bridge.BuildLogger(cfg)
	b, err := bridge.New(cfg, logger)
	if err != nil {
		logger.Error("exporter initialization failed", "error", err)
		return exitStartup
	}

	err = b.Run(context.Background())
	if err != nil {
		logger.Error("exporter runtime failed", "error", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, bridge.ErrLinkLost):
		return exitLinkLost
	default:
		return exitStartup
	}
}
