package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"boorudl/pkg/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonLogger writes raw JSON lines into buf at debug level
func jsonLogger(buf *bytes.Buffer) *zerologLogger {
	return &zerologLogger{zl: zerolog.New(buf).Level(zerolog.DebugLevel)}
}

// lastLine decodes the last JSON line written to buf
func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"info", config.LoggingConfig{Level: "info"}, false},
		{"debug", config.LoggingConfig{Level: "debug"}, false},
		{"upper case", config.LoggingConfig{Level: "WARN"}, false},
		{"invalid level", config.LoggingConfig{Level: "loud"}, true},
		{"file output", config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "boorudl.log")}, false},
		{"no color", config.LoggingConfig{Level: "warn", NoColor: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
			if tt.cfg.File != "" {
				assert.FileExists(t, tt.cfg.File)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    zerolog.Level
		wantErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"DEBUG", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{" info ", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"fatal", zerolog.FatalLevel, false},
		{"panic", zerolog.PanicLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"trace", zerolog.InfoLevel, true},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := parseLogLevel(tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelMethods(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf)

	calls := map[string]func(string){
		"debug": l.Debug,
		"info":  l.Info,
		"warn":  l.Warn,
		"error": l.Error,
	}
	for level, call := range calls {
		buf.Reset()
		call(level + " message")
		line := lastLine(t, &buf)
		assert.Equal(t, level, line["level"])
		assert.Equal(t, level+" message", line["message"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := &zerologLogger{zl: zerolog.New(&buf).Level(zerolog.WarnLevel)}

	l.Info("hidden")
	l.DebugWithFields("hidden too", map[string]interface{}{"page": 1})
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestBoundFields(t *testing.T) {
	var buf bytes.Buffer
	base := jsonLogger(&buf)

	child := base.
		WithField("site", "safebooru.org").
		WithFields(map[string]interface{}{"page": 3, "dialect": "offset"})
	child.Info("fetching")

	line := lastLine(t, &buf)
	assert.Equal(t, "safebooru.org", line["site"])
	assert.Equal(t, float64(3), line["page"])
	assert.Equal(t, "offset", line["dialect"])

	base.Info("plain")
	line = lastLine(t, &buf)
	assert.NotContains(t, line, "site", "parent must not see child fields")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf)

	assert.Same(t, l, l.WithError(nil))

	l.WithError(errors.New("status 503")).WarnWithFields("download failed", map[string]interface{}{
		"post_id": "42",
	})

	line := lastLine(t, &buf)
	assert.Equal(t, "status 503", line["error"])
	assert.Equal(t, "42", line["post_id"])
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf)

	l.InfoWithFields("typed", map[string]interface{}{
		"string":   "x",
		"int":      7,
		"int64":    int64(1 << 40),
		"float":    0.5,
		"bool":     true,
		"duration": 1500 * time.Millisecond,
		"strings":  []string{"a", "b"},
		"struct":   struct{ Name string }{Name: "n"},
	})

	line := lastLine(t, &buf)
	assert.Equal(t, "x", line["string"])
	assert.Equal(t, float64(7), line["int"])
	assert.Equal(t, true, line["bool"])
	assert.Equal(t, []interface{}{"a", "b"}, line["strings"])
	assert.Equal(t, map[string]interface{}{"Name": "n"}, line["struct"])
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })

	require.NoError(t, Initialize(&config.LoggingConfig{Level: "debug", NoColor: true}))
	assert.NotNil(t, GetLogger())

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")
	WithField("key", "value").Info("with field")
	WithFields(map[string]interface{}{"k1": "v1"}).Info("with fields")
	WithError(errors.New("boom")).Error("with error")

	out := buf.String()
	for _, want := range []string{"debug message", "info message", "warn message", "error message", "key:value", "k1:v1", "boom"} {
		assert.Contains(t, out, want)
	}

	assert.Error(t, Initialize(&config.LoggingConfig{Level: "nope"}))
}

func TestConsoleOutputNoColor(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })

	l, err := New(&config.LoggingConfig{Level: "info", NoColor: true})
	require.NoError(t, err)

	l.InfoWithFields("page processed", map[string]interface{}{"page": 3})

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "| page processed")
	assert.Contains(t, out, "page:3")
	assert.NotContains(t, out, "\033[")
	assert.NotContains(t, out, "boorudl", "app field is excluded from the console")
}

func TestConsoleOutputColor(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })

	l, err := New(&config.LoggingConfig{Level: "info"})
	require.NoError(t, err)
	l.Warn("careful")

	assert.Contains(t, buf.String(), "\033[33mWARN\033[0m")
}

func TestFileOutputIsJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := Output
	Output = &buf
	t.Cleanup(func() { Output = prev })

	file := filepath.Join(t.TempDir(), "run.log")
	l, err := New(&config.LoggingConfig{Level: "info", File: file, NoColor: true})
	require.NoError(t, err)
	l.Info("written to both")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"app":"boorudl"`)
	assert.Contains(t, string(data), `"version":"`+Version+`"`)
	assert.Contains(t, buf.String(), "written to both")
}

func TestDomainHelpers(t *testing.T) {
	log := NewTestLogger()

	LogPage(log, 2, 100, 12)
	LogDownload(log, "42", "https://x/42.jpg", 5, nil)
	LogDownload(log, "43", "https://x/43.jpg", 5, errors.New("status 404"))
	LogSkip(log, "44", "video", "video/animation .webm")
	LogSummary(log, map[string]interface{}{"downloaded": 5})
	LogComponentStart(log, "scraper", map[string]interface{}{"max_images": 5})

	assert.True(t, log.HasMessage("page processed"))
	assert.True(t, log.HasMessage("downloaded"))
	assert.True(t, log.HasMessage("run finished"))

	warns := log.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	assert.EqualError(t, warns[0].Error, "status 404")
	assert.Equal(t, "43", warns[0].Fields["post_id"])

	skips := log.GetMessagesByLevel("DEBUG")
	require.Len(t, skips, 1)
	assert.Equal(t, "video", skips[0].Fields["reason"])

	started := log.GetMessages()[len(log.GetMessages())-1]
	assert.Equal(t, "component started", started.Message)
	assert.Equal(t, "scraper", started.Fields["component"])
	assert.Equal(t, 5, started.Fields["max_images"])
}

func TestTestLoggerChildrenShareBuffer(t *testing.T) {
	log := NewTestLogger()
	child := log.WithField("page", 1).WithError(errors.New("x"))
	child.Info("from child")
	log.Info("from parent")

	msgs := log.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].Fields["page"])
	assert.Error(t, msgs[0].Error)
	assert.NotContains(t, msgs[1].Fields, "page")
	assert.Equal(t, "[INFO] from child page=1 error=x\n[INFO] from parent\n", log.String())

	log.Clear()
	assert.Empty(t, log.GetMessages())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.WithField("a", 1).WithError(errors.New("x")).WarnWithFields("ignored", nil)
	assert.NotNil(t, l.WithFields(nil))
}
