package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/zerr"
)

func TestLogger_ErrorFlattensCauseChain(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	base := zerr.New("connection refused")
	l.Error(zerr.Wrap(base, "failed to fetch manifest"))

	out := buf.String()
	assert.Contains(t, out, "failed to fetch manifest")
	assert.Contains(t, out, "connection refused")
}

func TestLogger_ErrorNilIsNoop(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Error(nil)

	assert.Empty(t, buf.String())
}

func TestLogger_DebugSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Debug("noisy detail", "key", "value")
	assert.Empty(t, buf.String())

	l.SetVerbose()
	l.Debug("noisy detail", "key", "value")
	assert.Contains(t, buf.String(), "noisy detail")
}
