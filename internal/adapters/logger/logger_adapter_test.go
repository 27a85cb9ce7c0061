package logger_adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"estate-parser-service/internal/core/port"

	"github.com/stretchr/testify/require"
)

func TestSlogAdapterWritesFieldsAsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelDebug, IsJSON: true})

	logger.WithFields(port.Fields{"component": "portal_adapter"}).
		Info("Page fetched", port.Fields{"page": 2})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "Page fetched", record["msg"])
	require.Equal(t, "portal_adapter", record["component"])
	require.Equal(t, float64(2), record["page"])
}

func TestSlogAdapterAppendsError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, IsJSON: true})

	logger.Error("Fetch failed", fmt.Errorf("status 503"), nil)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "status 503", record["error"])
}

func TestSlogAdapterHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(SlogConfig{Writer: &buf, Level: slog.LevelWarn, IsJSON: true})

	logger.Debug("noise", nil)
	logger.Info("still noise", nil)
	require.Zero(t, buf.Len())

	logger.Warn("kept", nil)
	require.NotZero(t, buf.Len())
}

type capturingLogger struct {
	infos  []string
	errors []string
}

func (c *capturingLogger) Info(msg string, fields port.Fields)  { c.infos = append(c.infos, msg) }
func (c *capturingLogger) Warn(msg string, fields port.Fields)  {}
func (c *capturingLogger) Debug(msg string, fields port.Fields) {}
func (c *capturingLogger) Error(msg string, err error, fields port.Fields) {
	c.errors = append(c.errors, msg)
}
func (c *capturingLogger) WithFields(fields port.Fields) port.LoggerPort { return c }

func TestMultiloggerFansOut(t *testing.T) {
	first := &capturingLogger{}
	second := &capturingLogger{}

	multi, err := NewMultiloggerAdapter(first, second)
	require.NoError(t, err)

	multi.Info("Run started", nil)
	multi.Error("Run failed", fmt.Errorf("boom"), nil)

	require.Equal(t, []string{"Run started"}, first.infos)
	require.Equal(t, []string{"Run started"}, second.infos)
	require.Equal(t, []string{"Run failed"}, first.errors)
	require.Equal(t, []string{"Run failed"}, second.errors)
}

func TestMultiloggerRequiresAtLeastOne(t *testing.T) {
	_, err := NewMultiloggerAdapter()
	require.Error(t, err)
}
