package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_FullConfig(t *testing.T) {
	yaml := `instrument: RACHUTS
auto_ack: false
max_frame_length: 65536
zephyr_port: /dev/ttyUSB0
log_port: /dev/ttyUSB1
baud: 57600
data_dir: /var/lib/obcsim
auto_gps: true
gps_interval: 30s
solar_zenith_angle: 87.5

storage:
  backend: s3
  path: flight-archives/obcsim
  region: us-east-1
  endpoint: https://example.com
  s3_path_style: true
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "instrument", cfg.Instrument, "RACHUTS")
	if cfg.AutoAckEnabled() {
		t.Error("auto_ack: expected false")
	}
	if cfg.MaxFrameLength != 65536 {
		t.Errorf("max_frame_length: got %d", cfg.MaxFrameLength)
	}
	assertEqual(t, "zephyr_port", cfg.ZephyrPort, "/dev/ttyUSB0")
	assertEqual(t, "log_port", cfg.LogPort, "/dev/ttyUSB1")
	if cfg.EffectiveBaud() != 57600 {
		t.Errorf("baud: got %d", cfg.EffectiveBaud())
	}
	assertEqual(t, "data_dir", cfg.DataDir, "/var/lib/obcsim")
	if !cfg.AutoGPS {
		t.Error("auto_gps: expected true")
	}
	if cfg.EffectiveGPSInterval() != 30*time.Second {
		t.Errorf("gps_interval: got %v", cfg.EffectiveGPSInterval())
	}
	if cfg.SolarZenithAngle != 87.5 {
		t.Errorf("solar_zenith_angle: got %v", cfg.SolarZenithAngle)
	}

	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	assertEqual(t, "storage.path", cfg.Storage.Path, "flight-archives/obcsim")
	assertEqual(t, "storage.region", cfg.Storage.Region, "us-east-1")
	assertEqual(t, "storage.endpoint", cfg.Storage.Endpoint, "https://example.com")
	if !cfg.Storage.S3PathStyle {
		t.Error("storage.s3_path_style: expected true")
	}
}

func TestLoad_EmptyConfigDefaults(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.AutoAckEnabled() {
		t.Error("auto_ack must default to true")
	}
	if cfg.EffectiveBaud() != 115200 {
		t.Errorf("baud default: got %d", cfg.EffectiveBaud())
	}
	if cfg.EffectiveMaxFrameLength() <= 0 {
		t.Errorf("max_frame_length default: got %d", cfg.EffectiveMaxFrameLength())
	}
	if cfg.EffectiveGPSInterval() != 10*time.Second {
		t.Errorf("gps_interval default: got %v", cfg.EffectiveGPSInterval())
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("OBCSIM_PORT", "/dev/ttyACM3")
	cfg, err := Load(writeTemp(t, "zephyr_port: ${OBCSIM_PORT}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "zephyr_port", cfg.ZephyrPort, "/dev/ttyACM3")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeTemp(t, "instrument: [unclosed"))
	if err == nil || !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("expected YAML error, got %v", err)
	}
}

func TestLoad_UnknownInstrumentRejected(t *testing.T) {
	_, err := Load(writeTemp(t, "instrument: VOYAGER\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown instrument") {
		t.Errorf("expected instrument error, got %v", err)
	}
}

func TestLoad_S3BackendRequiresPath(t *testing.T) {
	_, err := Load(writeTemp(t, "storage:\n  backend: s3\n"))
	if err == nil || !strings.Contains(err.Error(), "storage.path") {
		t.Errorf("expected storage.path error, got %v", err)
	}
}

func TestLoad_UnknownBackendRejected(t *testing.T) {
	_, err := Load(writeTemp(t, "storage:\n  backend: tape\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown storage backend") {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestDuration_Invalid(t *testing.T) {
	_, err := Load(writeTemp(t, "gps_interval: soon\n"))
	if err == nil {
		t.Error("expected duration parse error")
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "obcsim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %q, want %q", field, got, want)
	}
}
