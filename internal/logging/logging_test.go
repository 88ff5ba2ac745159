package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("debug", "json", &buf)
	l.Debug("loaded", zap.String("model", "msis2/single"))
	l.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if entry["msg"] != "loaded" || entry["model"] != "msis2/single" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		debugOn bool
		warnOn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"bogus", false, true},
		{"error", false, false},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		l := New(tt.level, "console", &buf)
		l.Debug("dbg")
		l.Warn("wrn")
		out := buf.String()
		if strings.Contains(out, "dbg") != tt.debugOn {
			t.Errorf("%s: debug logged = %v, want %v", tt.level, !tt.debugOn, tt.debugOn)
		}
		if strings.Contains(out, "wrn") != tt.warnOn {
			t.Errorf("%s: warn logged = %v, want %v", tt.level, !tt.warnOn, tt.warnOn)
		}
	}
}

func TestGlobal(t *testing.T) {
	if L() == nil {
		t.Fatal("L() should never be nil")
	}
	var buf bytes.Buffer
	Set(New("info", "console", &buf))
	L().Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("global logger did not write: %q", buf.String())
	}
	Set(nil)
	L().Info("dropped")
}
