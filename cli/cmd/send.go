package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/stratocore/obcsim/transmit"
	"github.com/stratocore/obcsim/types"
	"github.com/stratocore/obcsim/zephyr"
)

// SendCommand returns the send command: build one Zephyr message and
// write it to the link. Useful for bench checks without a full session.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "Build and transmit a single Zephyr message",
		Subcommands: []*cli.Command{
			sendIMCommand(),
			sendGPSCommand(),
			sendSWCommand(),
			sendTCCommand(),
			sendAckCommand(),
		},
	}
}

func sendIMCommand() *cli.Command {
	return &cli.Command{
		Name:      "im",
		Usage:     "Send an instrument mode message",
		ArgsUsage: "<mode>",
		Flags:     LinkFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("mode required (SB, FL, LP, SA, EF)", exitRunError)
			}
			mode := c.Args().First()
			if !types.ValidMode(mode) {
				return cli.Exit(fmt.Sprintf("unknown mode %q", mode), exitRunError)
			}
			return sendOne(c, func(b *zephyr.Builder) []byte {
				return b.BuildIM(mode)
			})
		},
	}
}

func sendGPSCommand() *cli.Command {
	flags := append(LinkFlags(),
		&cli.Float64Flag{
			Name:  "sza",
			Usage: "Solar zenith angle (degrees)",
		},
	)
	return &cli.Command{
		Name:  "gps",
		Usage: "Send a GPS position message",
		Flags: flags,
		Action: func(c *cli.Context) error {
			sza := c.Float64("sza")
			return sendOne(c, func(b *zephyr.Builder) []byte {
				return b.BuildGPS(zephyr.DefaultFix(sza))
			})
		},
	}
}

func sendSWCommand() *cli.Command {
	return &cli.Command{
		Name:  "sw",
		Usage: "Send a shutdown warning message",
		Flags: LinkFlags(),
		Action: func(c *cli.Context) error {
			return sendOne(c, func(b *zephyr.Builder) []byte {
				return b.BuildSW()
			})
		},
	}
}

func sendTCCommand() *cli.Command {
	return &cli.Command{
		Name:      "tc",
		Usage:     "Send a telecommand with its binary section",
		ArgsUsage: "<command>",
		Flags:     LinkFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("command string required", exitRunError)
			}
			command := c.Args().First()
			return sendOne(c, func(b *zephyr.Builder) []byte {
				return b.BuildTC(command)
			})
		},
	}
}

func sendAckCommand() *cli.Command {
	return &cli.Command{
		Name:      "ack",
		Usage:     "Send an acknowledgment (SAck, RAAck, TMAck)",
		ArgsUsage: "<tag> [value]",
		Flags:     LinkFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("ack tag required (SAck, RAAck, TMAck)", exitRunError)
			}
			kind, ok := types.KindForTag(c.Args().First())
			if !ok || !kind.IsAck() {
				return cli.Exit(fmt.Sprintf("not an ack tag: %q", c.Args().First()), exitRunError)
			}
			value := "ACK"
			if c.NArg() > 1 {
				value = c.Args().Get(1)
			}
			var buildErr error
			err := sendOne(c, func(b *zephyr.Builder) []byte {
				payload, err := b.BuildAck(kind, value)
				buildErr = err
				return payload
			})
			if buildErr != nil {
				return cli.Exit(buildErr.Error(), exitRunError)
			}
			return err
		},
	}
}

// sendOne opens the link, submits one built message and closes.
func sendOne(c *cli.Context, build func(*zephyr.Builder) []byte) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitRunError)
	}
	instrument, err := resolveInstrument(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitRunError)
	}
	port, err := resolvePort(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitRunError)
	}

	transport, err := transmit.OpenSerial(transmit.SerialConfig{
		Port: port,
		Baud: resolveBaud(c, cfg),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open %s: %v", port, err), exitRunError)
	}
	defer transport.Close()

	payload := build(zephyr.NewBuilder(instrument))
	if payload == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queue := transmit.NewQueue(transport)
	defer queue.Close()
	if err := queue.Submit(ctx, payload); err != nil {
		return cli.Exit(fmt.Sprintf("transmit failed: %v", err), exitRunError)
	}
	fmt.Printf("sent %d bytes to %s\n", len(payload), port)
	return nil
}
