package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/stratocore/obcsim/transmit"
	"github.com/stratocore/obcsim/types"
)

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(_ *cli.Context) error {
			fmt.Printf("obcsim %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}

// PortsCommand returns the ports command: list serial ports the
// simulator could attach to.
func PortsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ports",
		Usage: "List available serial ports",
		Action: func(_ *cli.Context) error {
			ports, err := transmit.ListPorts()
			if err != nil {
				return cli.Exit(fmt.Sprintf("port enumeration failed: %v", err), exitRunError)
			}
			if len(ports) == 0 {
				fmt.Println("no serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Println(p)
			}
			return nil
		},
	}
}
