package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/stratocore/obcsim/journal"
	"github.com/stratocore/obcsim/session"
)

// InspectCommand returns the inspect command: replay a session journal
// and print its envelopes. Read-only; never touches the link.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Replay a session journal",
		ArgsUsage: "<session-dir or journal file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only show envelopes of this kind (e.g. command_s, telemetry)",
			},
			&cli.BoolFlag{
				Name:  "raw",
				Usage: "Print raw frame bytes (escaped) for each envelope",
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("session directory or journal file required", exitRunError)
	}
	path := c.Args().First()
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, session.JournalFile)
	}

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open journal: %v", err), exitRunError)
	}
	defer f.Close()

	kindFilter := c.String("kind")
	showRaw := c.Bool("raw")

	r := journal.NewReader(f)
	count := 0
	for {
		env, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if journal.IsFrameError(err, journal.FrameErrorPartial) {
				fmt.Fprintf(os.Stderr, "Warning: journal truncated after %d envelopes\n", count)
				break
			}
			return cli.Exit(fmt.Sprintf("journal read failed: %v", err), exitRunError)
		}
		count++
		if kindFilter != "" && env.Kind != kindFilter {
			continue
		}
		printEnvelope(env, showRaw)
	}
	fmt.Printf("%d envelopes\n", count)
	return nil
}

func printEnvelope(env *journal.Envelope, showRaw bool) {
	direction := "RX"
	if env.Outbound {
		direction = "TX"
	}
	line := fmt.Sprintf("%6d  %s  %s  %-12s", env.Seq, env.Ts, direction, env.Kind)
	switch {
	case env.Text != "":
		line += "  " + env.Text
	case len(env.Payload) > 0:
		line += fmt.Sprintf("  %d payload bytes", len(env.Payload))
	case len(env.Fields) > 0:
		var parts []string
		for _, key := range []string{"Msg", "Inst", "Mode", "Ack", "Length", "_text"} {
			if v, ok := env.Fields[key]; ok {
				parts = append(parts, key+"="+v)
			}
		}
		line += "  " + strings.Join(parts, " ")
	}
	if env.Reason != "" {
		line += "  (" + env.Reason + ")"
	}
	fmt.Println(line)
	if showRaw {
		fmt.Printf("        %q\n", env.Raw)
	}
}
