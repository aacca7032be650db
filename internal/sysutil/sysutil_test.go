package sysutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetLogLevel(t *testing.T) {
	orig := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(orig) })

	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"  DeBuG ", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		SetLogLevel(tc.in)
		if got := zerolog.GlobalLevel(); got != tc.want {
			t.Fatalf("SetLogLevel(%q) -> %v; want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetupLogger_JSONAndLevel(t *testing.T) {
	origLevel, origLogger, origCtx := zerolog.GlobalLevel(), log.Logger, zerolog.DefaultContextLogger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(origLevel)
		log.Logger = origLogger
		zerolog.DefaultContextLogger = origCtx
	})

	var buf bytes.Buffer
	SetupLogger(&buf, "warn", false)
	log.Info().Msg("hidden")
	log.Warn().Str("protocol", "ESIC-2024-000001").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"service":"esicd"`) || !strings.Contains(out, `"protocol":"ESIC-2024-000001"`) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	if err := os.WriteFile(env, []byte("ESIC_TEST_DOTENV=loaded\nESIC_TEST_PRESET=fromfile\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ESIC_TEST_PRESET", "fromenv")
	t.Cleanup(func() { _ = os.Unsetenv("ESIC_TEST_DOTENV") })

	got, err := LoadDotEnv("", filepath.Join(dir, "missing.env"), env)
	if err != nil || got != env {
		t.Fatalf("LoadDotEnv = %q, %v", got, err)
	}
	if v := os.Getenv("ESIC_TEST_DOTENV"); v != "loaded" {
		t.Fatalf("ESIC_TEST_DOTENV = %q", v)
	}
	if v := os.Getenv("ESIC_TEST_PRESET"); v != "fromenv" {
		t.Fatalf("existing variable overridden: %q", v)
	}

	if got, err := LoadDotEnv(filepath.Join(dir, "none.env")); err != nil || got != "" {
		t.Fatalf("missing files should be skipped, got %q, %v", got, err)
	}
}
