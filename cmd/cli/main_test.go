package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/LaughTrack/internal/wavtest"
)

const script = `[
  {"index": 0, "scores": [{"label": "laughter", "confidence": 0.62}]},
  {"index": 1, "scores": [{"label": "speech", "confidence": 0.93}]},
  {"index": 2, "scores": [{"label": "laughter", "confidence": 0.81}, {"label": "speech", "confidence": 0.1}]}
]`

func writeScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.json")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	t.Setenv("LAUGH_CONFIG", "")
	t.Setenv("LAUGH_DB_PATH", "")
	var out bytes.Buffer
	code := run(context.Background(), args, &out)
	return code, out.String()
}

func TestEndToEnd(t *testing.T) {
	wav := wavtest.Silence(t, 8000, 3)

	code, out := runCLI(t, wav, "1.0", "600", "0.5", "0.0", "--engine", "replay", "--script", writeScript(t))
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, out)
	}
	want := "{\n  \"0.0\": 0.62,\n  \"2.0\": 0.81\n}\n"
	if out != want {
		t.Errorf("Output =\n%q\nwant\n%q", out, want)
	}
}

func TestEndToEndWithWorkers(t *testing.T) {
	wav := wavtest.Silence(t, 8000, 3)

	code, out := runCLI(t, "--workers", "3", "--engine=replay", "--script="+writeScript(t), wav, "1", "600", "0.5", "0")
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, out)
	}
	if !strings.HasPrefix(out, "{\n  \"0.0\": 0.62,") {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestNothingAboveThreshold(t *testing.T) {
	wav := wavtest.Silence(t, 8000, 3)

	code, out := runCLI(t, wav, "1.0", "600", "0.9", "0.0", "--engine", "replay", "--script", writeScript(t))
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, out)
	}
	if out != "{}\n" {
		t.Errorf("Expected {} output, got %q", out)
	}
}

func TestDefaultEngineOnSilence(t *testing.T) {
	wav := wavtest.Silence(t, 16000, 2)

	code, out := runCLI(t, wav, "0.5", "600", "0.5", "0.5")
	if code != 0 || out != "{}\n" {
		t.Errorf("Expected {} and exit 0, got %d %q", code, out)
	}
}

func TestWrongArgumentCount(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"a.wav", "1.0", "600", "0.5"},
		{"a.wav", "1.0", "600", "0.5", "0.0", "extra"},
	} {
		code, out := runCLI(t, args...)
		if code != 1 {
			t.Errorf("%v: expected exit 1, got %d", args, code)
		}
		if !strings.Contains(out, usage) {
			t.Errorf("%v: expected usage message, got %q", args, out)
		}
		if strings.Contains(out, "{") {
			t.Errorf("%v: no JSON should be printed, got %q", args, out)
		}
	}
}

func TestArgumentParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"window not a number", []string{"a.wav", "abc", "600", "0.5", "0.0"}},
		{"window zero", []string{"a.wav", "0", "600", "0.5", "0.0"}},
		{"timescale fractional", []string{"a.wav", "1.0", "60.5", "0.5", "0.0"}},
		{"timescale zero", []string{"a.wav", "1.0", "0", "0.5", "0.0"}},
		{"threshold above one", []string{"a.wav", "1.0", "600", "1.5", "0.0"}},
		{"overlap of one", []string{"a.wav", "1.0", "600", "0.5", "1"}},
		{"overlap NaN", []string{"a.wav", "1.0", "600", "0.5", "NaN"}},
		{"unknown flag", []string{"--bogus", "a.wav", "1.0", "600", "0.5", "0.0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := runCLI(t, tt.args...)
			if code != 1 {
				t.Errorf("Expected exit 1, got %d", code)
			}
			if !strings.HasPrefix(out, "Error: invalid argument") {
				t.Errorf("Expected parse error message, got %q", out)
			}
		})
	}
}

func TestMissingFile(t *testing.T) {
	code, out := runCLI(t, filepath.Join(t.TempDir(), "missing.wav"), "1.0", "600", "0.5", "0.0")
	if code != 1 {
		t.Errorf("Expected exit 1, got %d", code)
	}
	if !strings.HasPrefix(out, "Error: cannot open audio file") {
		t.Errorf("Expected open error, got %q", out)
	}
}

func TestRunIsRecordedWithDB(t *testing.T) {
	wav := wavtest.Silence(t, 8000, 3)
	db := filepath.Join(t.TempDir(), "runs.sqlite3")

	code, out := runCLI(t, wav, "1.0", "600", "0.5", "0.0", "--engine", "replay", "--script", writeScript(t), "--db", db)
	if code != 0 {
		t.Fatalf("Expected exit 0, got %d: %s", code, out)
	}
	if _, err := os.Stat(db); err != nil {
		t.Errorf("Expected run history at %s: %v", db, err)
	}
}

func TestOversizedWindow(t *testing.T) {
	wav := wavtest.Silence(t, 8000, 1)

	for _, window := range []string{"1e12", "1e300"} {
		code, out := runCLI(t, wav, window, "600", "0.5", "0.0")
		if code != 1 {
			t.Errorf("%s: expected exit 1, got %d", window, code)
		}
		if !strings.HasPrefix(out, "Error: ") || !strings.Contains(out, "exceeds") {
			t.Errorf("%s: expected a window size error, got %q", window, out)
		}
	}
}
