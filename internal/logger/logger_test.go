package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "json")
	l.Info().Str("address", "mc.example.com").Msg("queried")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not json: %q", buf.String())
	}
	if line["address"] != "mc.example.com" || line["message"] != "queried" || line["time"] == nil {
		t.Fatalf("line = %v", line)
	}
}

func TestNewConsoleNoColor(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console")
	l.Warn().Msg("plain")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatalf("console output to a buffer is colored: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "plain") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestSetupFile(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "mcping.log")
	closeFn := Setup(Config{Level: "DEBUG", Format: "json", Output: path})
	log.Debug().Msg("to file")
	closeFn()

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("level = %s", zerolog.GlobalLevel())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"message":"to file"`) {
		t.Fatalf("file = %q", data)
	}
}
