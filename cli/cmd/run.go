package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/stratocore/obcsim/ack"
	"github.com/stratocore/obcsim/cli/config"
	"github.com/stratocore/obcsim/log"
	"github.com/stratocore/obcsim/metrics"
	"github.com/stratocore/obcsim/pipeline"
	"github.com/stratocore/obcsim/session"
	"github.com/stratocore/obcsim/transmit"
	"github.com/stratocore/obcsim/types"
	"github.com/stratocore/obcsim/zephyr"
)

// Exit codes for obcsim run.
const (
	exitSuccess  = 0
	exitRunError = 1
)

// RunCommand returns the run command: open the link, demultiplex the
// stream into the session archive, and auto-acknowledge commands until
// interrupted.
func RunCommand() *cli.Command {
	flags := append(LinkFlags(),
		LogPortFlag,
		&cli.StringFlag{
			Name:  "data-dir",
			Usage: "Directory for session archives",
		},
		&cli.BoolFlag{
			Name:  "no-auto-ack",
			Usage: "Disable automatic acknowledgment of commands",
		},
		&cli.BoolFlag{
			Name:  "auto-gps",
			Usage: "Send periodic GPS messages",
		},
		&cli.DurationFlag{
			Name:  "gps-interval",
			Usage: "Period between automatic GPS messages",
		},
		&cli.Float64Flag{
			Name:  "sza",
			Usage: "Solar zenith angle reported in GPS messages (degrees)",
		},
		&cli.IntFlag{
			Name:  "max-frame-length",
			Usage: "Maximum frame length in bytes",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the session summary",
		},
	)
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the link session (demultiplex, record, acknowledge)",
		Flags:  flags,
		Action: runAction,
	}
}

// runOptions holds the merged flag/config values for one session.
type runOptions struct {
	instrument  string
	port        string
	logPort     string
	baud        int
	dataDir     string
	autoAck     bool
	autoGPS     bool
	gpsInterval time.Duration
	sza         float64
	maxFrameLen int
	storage     config.StorageConfig
}

func resolveRunOptions(c *cli.Context, cfg *config.Config) (runOptions, error) {
	opts := runOptions{
		dataDir:     cfg.DataDir,
		autoAck:     cfg.AutoAckEnabled(),
		autoGPS:     cfg.AutoGPS,
		gpsInterval: cfg.EffectiveGPSInterval(),
		sza:         cfg.SolarZenithAngle,
		maxFrameLen: cfg.EffectiveMaxFrameLength(),
		storage:     cfg.Storage,
	}

	var err error
	if opts.instrument, err = resolveInstrument(c, cfg); err != nil {
		return opts, err
	}
	if opts.port, err = resolvePort(c, cfg); err != nil {
		return opts, err
	}
	opts.baud = resolveBaud(c, cfg)
	opts.logPort = resolveLogPort(c, cfg)

	if c.String("data-dir") != "" {
		opts.dataDir = c.String("data-dir")
	}
	if opts.dataDir == "" {
		opts.dataDir = "data"
	}
	if c.Bool("no-auto-ack") {
		opts.autoAck = false
	}
	if c.Bool("auto-gps") {
		opts.autoGPS = true
	}
	if c.Duration("gps-interval") > 0 {
		opts.gpsInterval = c.Duration("gps-interval")
	}
	if c.IsSet("sza") {
		opts.sza = c.Float64("sza")
	}
	if c.Int("max-frame-length") > 0 {
		opts.maxFrameLen = c.Int("max-frame-length")
	}
	return opts, nil
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitRunError)
	}
	opts, err := resolveRunOptions(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitRunError)
	}

	sess := types.SessionContext{
		Instrument: opts.instrument,
		SessionID:  uuid.New().String(),
		StartTime:  time.Now(),
		AutoAck:    opts.autoAck,
	}
	logger := log.NewLogger(sess)

	transport, err := transmit.OpenSerial(transmit.SerialConfig{
		Port: opts.port,
		Baud: opts.baud,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open %s: %v", opts.port, err), exitRunError)
	}

	// A dedicated Strato-log port carries instrument debug output beside
	// the Zephyr stream; when it names the same device the debug lines
	// arrive interleaved on the main stream instead.
	var logTransport transmit.Transport
	if opts.logPort != "" && opts.logPort != opts.port {
		logTransport, err = transmit.OpenSerial(transmit.SerialConfig{
			Port: opts.logPort,
			Baud: opts.baud,
		})
		if err != nil {
			transport.Close()
			return cli.Exit(fmt.Sprintf("failed to open %s: %v", opts.logPort, err), exitRunError)
		}
	}

	sink, err := session.NewFileSink(opts.dataDir, sess)
	if err != nil {
		transport.Close()
		if logTransport != nil {
			logTransport.Close()
		}
		return cli.Exit(err.Error(), exitRunError)
	}

	queue := transmit.NewQueue(transport)
	builder := zephyr.NewBuilder(opts.instrument)
	responder := ack.NewResponder(sess, builder, queue)
	collector := metrics.NewCollector(opts.instrument, sess.SessionID)
	p := pipeline.New(sess, opts.maxFrameLen, sink, responder, collector, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received", nil)
		cancel()
		// Unblock the serial reads so the loops observe cancellation.
		transport.Close()
		if logTransport != nil {
			logTransport.Close()
		}
	}()

	if opts.autoGPS {
		go gpsLoop(ctx, builder, queue, sink, logger, opts.gpsInterval, opts.sza)
	}

	tapDone := make(chan error, 1)
	if logTransport != nil {
		tap := pipeline.NewDebugTap(sink, collector, logger)
		go func() { tapDone <- tap.Run(ctx, logTransport) }()
	} else {
		close(tapDone)
	}

	logger.Info("session started", map[string]any{
		"port":     opts.port,
		"log_port": opts.logPort,
		"baud":     opts.baud,
		"auto_ack": opts.autoAck,
		"archive":  sink.Dir(),
	})

	runErr := p.Run(ctx, transport)
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	// Stop the log tap before the sink closes.
	cancel()
	if logTransport != nil {
		logTransport.Close()
	}
	if tapErr := <-tapDone; tapErr != nil && !errors.Is(tapErr, context.Canceled) {
		logger.Warn("log port reader stopped", map[string]any{"error": tapErr.Error()})
	}

	summary, closeErr := p.Close()
	queue.Close()
	transport.Close()

	if opts.storage.Backend == "s3" {
		if err := mirrorArchive(opts.storage, sink.Dir()); err != nil {
			logger.Error("archive mirror failed", map[string]any{"error": err.Error()})
		}
	}

	if !c.Bool("quiet") {
		printSummary(summary, sink.Dir())
	}

	if runErr != nil {
		return cli.Exit(fmt.Sprintf("session failed: %v", runErr), exitRunError)
	}
	if closeErr != nil {
		return cli.Exit(fmt.Sprintf("session close failed: %v", closeErr), exitRunError)
	}
	return cli.Exit("", exitSuccess)
}

// gpsLoop sends a GPS position message every interval until the session
// context ends.
func gpsLoop(
	ctx context.Context,
	builder *zephyr.Builder,
	queue *transmit.Queue,
	sink session.Sink,
	logger *log.Logger,
	interval time.Duration,
	sza float64,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := builder.BuildGPS(zephyr.DefaultFix(sza))
			if err := queue.Submit(ctx, payload); err != nil {
				logger.Warn("gps send failed", map[string]any{"error": err.Error()})
				continue
			}
			if err := sink.RecordSent(ctx, types.KindGPS, payload); err != nil {
				logger.Warn("gps record failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// mirrorArchive uploads the finished archive to S3. Runs after the
// session is closed, with its own deadline.
func mirrorArchive(storage config.StorageConfig, dir string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bucket, prefix := session.ParseS3Path(storage.Path)
	mirror, err := session.NewS3Mirror(ctx, session.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       storage.Region,
		Endpoint:     storage.Endpoint,
		UsePathStyle: storage.S3PathStyle,
	})
	if err != nil {
		return err
	}
	return mirror.Upload(ctx, dir)
}

func printSummary(summary pipeline.Summary, archiveDir string) {
	m := summary.Metrics
	fmt.Printf("\nsession=%s instrument=%s archive=%s\n", m.SessionID, m.Instrument, archiveDir)
	fmt.Printf("\n=== Session Summary ===\n")
	fmt.Printf("Bytes Ingested:    %d\n", m.BytesIngested)
	fmt.Printf("Frames Scanned:    %d\n", m.FramesScanned)
	fmt.Printf("Malformed:         %d\n", m.Malformed)
	fmt.Printf("CRC Mismatches:    %d\n", m.CRCMismatches)
	fmt.Printf("Telemetry Bytes:   %d\n", m.TelemetryBytes)
	fmt.Printf("Acks Sent:         %d\n", m.AcksSent)
	fmt.Printf("Ack Failures:      %d\n", m.AckFailures)
	fmt.Printf("Sink Failures:     %d\n", m.SinkFailures)
	fmt.Printf("Transmit Failures: %d\n", m.TransmitFailures)

	if len(m.MessagesByKind) > 0 {
		fmt.Printf("\n=== Messages ===\n")
		for _, kind := range []types.MessageKind{
			types.KindCommandS, types.KindCommandRA, types.KindCommandTM,
			types.KindCRCTrailer, types.KindDebug, types.KindTelemetry,
			types.KindMalformed,
		} {
			if n := m.MessagesByKind[string(kind)]; n > 0 {
				fmt.Printf("%-14s %d\n", kind, n)
			}
		}
	}

	if len(summary.Incomplete) > 0 {
		fmt.Printf("\n=== Incomplete Acknowledgments ===\n")
		for _, inc := range summary.Incomplete {
			fmt.Printf("  - %s\n", inc)
		}
	}
}
