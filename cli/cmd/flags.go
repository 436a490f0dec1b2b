// Package cmd provides CLI commands for the obcsim binary.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/stratocore/obcsim/cli/config"
	"github.com/stratocore/obcsim/types"
)

// Shared flags for commands that talk to the link or read its config.
var (
	// ConfigFlag points at the obcsim.yaml config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to obcsim.yaml config file",
	}

	// InstrumentFlag selects the simulated instrument identity.
	InstrumentFlag = &cli.StringFlag{
		Name:    "instrument",
		Aliases: []string{"i"},
		Usage:   "Instrument identity: RATS, LPC, RACHUTS, FLOATS",
	}

	// PortFlag names the Zephyr serial port.
	PortFlag = &cli.StringFlag{
		Name:  "port",
		Usage: "Zephyr serial port (e.g. /dev/ttyUSB0)",
	}

	// BaudFlag overrides the serial baud rate.
	BaudFlag = &cli.IntFlag{
		Name:  "baud",
		Usage: "Serial baud rate (default 115200)",
	}

	// LogPortFlag names the instrument debug log serial port.
	LogPortFlag = &cli.StringFlag{
		Name:  "log-port",
		Usage: "Instrument debug log serial port (may equal --port when shared)",
	}
)

// LinkFlags returns the flags shared by commands that open the link.
func LinkFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		InstrumentFlag,
		PortFlag,
		BaudFlag,
	}
}

// loadConfig reads the config file named by --config, or returns an
// empty config when the flag is unset.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// resolveInstrument applies flag-over-config precedence and validates
// the result. The instrument identity has no default: the simulator
// must not claim an identity the operator did not choose.
func resolveInstrument(c *cli.Context, cfg *config.Config) (string, error) {
	instrument := cfg.Instrument
	if c.String("instrument") != "" {
		instrument = c.String("instrument")
	}
	if instrument == "" {
		return "", fmt.Errorf("instrument required (--instrument or config)")
	}
	if !types.ValidInstrument(instrument) {
		return "", fmt.Errorf("unknown instrument %q", instrument)
	}
	return instrument, nil
}

// resolvePort applies flag-over-config precedence for the Zephyr port.
func resolvePort(c *cli.Context, cfg *config.Config) (string, error) {
	port := cfg.ZephyrPort
	if c.String("port") != "" {
		port = c.String("port")
	}
	if port == "" {
		return "", fmt.Errorf("serial port required (--port or config)")
	}
	return port, nil
}

// resolveLogPort applies flag-over-config precedence for the debug log
// port. Empty means no dedicated log port; instruments may share the
// Zephyr port, in which case debug lines arrive on the main stream.
func resolveLogPort(c *cli.Context, cfg *config.Config) string {
	if c.String("log-port") != "" {
		return c.String("log-port")
	}
	return cfg.LogPort
}

// resolveBaud applies flag-over-config precedence for the baud rate.
func resolveBaud(c *cli.Context, cfg *config.Config) int {
	if c.Int("baud") > 0 {
		return c.Int("baud")
	}
	return cfg.EffectiveBaud()
}
