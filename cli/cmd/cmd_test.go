package cmd

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/stratocore/obcsim/cli/config"
)

// testContext builds a cli.Context with the given string flag values.
func testContext(t *testing.T, values map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("config", "", "")
	set.String("instrument", "", "")
	set.String("port", "", "")
	set.String("log-port", "", "")
	set.Int("baud", 0, "")
	for name, value := range values {
		if err := set.Set(name, value); err != nil {
			t.Fatalf("set flag %s: %v", name, err)
		}
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestResolveInstrument_FlagOverridesConfig(t *testing.T) {
	cfg := &config.Config{Instrument: "RATS"}
	c := testContext(t, map[string]string{"instrument": "LPC"})

	got, err := resolveInstrument(c, cfg)
	if err != nil {
		t.Fatalf("resolveInstrument failed: %v", err)
	}
	if got != "LPC" {
		t.Errorf("expected flag to win, got %q", got)
	}
}

func TestResolveInstrument_ConfigFallback(t *testing.T) {
	cfg := &config.Config{Instrument: "FLOATS"}
	got, err := resolveInstrument(testContext(t, nil), cfg)
	if err != nil {
		t.Fatalf("resolveInstrument failed: %v", err)
	}
	if got != "FLOATS" {
		t.Errorf("expected config value, got %q", got)
	}
}

func TestResolveInstrument_MissingRejected(t *testing.T) {
	if _, err := resolveInstrument(testContext(t, nil), &config.Config{}); err == nil {
		t.Error("expected error when instrument unset")
	}
}

func TestResolveInstrument_UnknownRejected(t *testing.T) {
	c := testContext(t, map[string]string{"instrument": "VOYAGER"})
	if _, err := resolveInstrument(c, &config.Config{}); err == nil {
		t.Error("expected error for unknown instrument")
	}
}

func TestResolvePortAndBaud(t *testing.T) {
	cfg := &config.Config{ZephyrPort: "/dev/ttyUSB0", Baud: 57600}

	port, err := resolvePort(testContext(t, nil), cfg)
	if err != nil || port != "/dev/ttyUSB0" {
		t.Errorf("expected config port, got %q (%v)", port, err)
	}

	c := testContext(t, map[string]string{"port": "/dev/ttyACM1", "baud": "9600"})
	port, err = resolvePort(c, cfg)
	if err != nil || port != "/dev/ttyACM1" {
		t.Errorf("expected flag port, got %q (%v)", port, err)
	}
	if got := resolveBaud(c, cfg); got != 9600 {
		t.Errorf("expected flag baud 9600, got %d", got)
	}
	if got := resolveBaud(testContext(t, nil), cfg); got != 57600 {
		t.Errorf("expected config baud 57600, got %d", got)
	}
}

func TestResolveLogPort(t *testing.T) {
	cfg := &config.Config{LogPort: "/dev/ttyUSB1"}

	if got := resolveLogPort(testContext(t, nil), cfg); got != "/dev/ttyUSB1" {
		t.Errorf("expected config log port, got %q", got)
	}
	c := testContext(t, map[string]string{"log-port": "/dev/ttyACM2"})
	if got := resolveLogPort(c, cfg); got != "/dev/ttyACM2" {
		t.Errorf("expected flag log port, got %q", got)
	}
	if got := resolveLogPort(testContext(t, nil), &config.Config{}); got != "" {
		t.Errorf("expected empty when unset, got %q", got)
	}
}

func TestLoadConfig_UnsetFlagYieldsEmptyConfig(t *testing.T) {
	cfg, err := loadConfig(testContext(t, nil))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if !cfg.AutoAckEnabled() {
		t.Error("empty config must default auto-ack on")
	}
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obcsim.yaml")
	if err := os.WriteFile(path, []byte("instrument: RACHUTS\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(testContext(t, map[string]string{"config": path}))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Instrument != "RACHUTS" {
		t.Errorf("expected RACHUTS, got %q", cfg.Instrument)
	}
}
