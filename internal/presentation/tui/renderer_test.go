package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeRenderer_KeepsCode(t *testing.T) {
	out, err := NewCodeRenderer("lua")("print(1)")
	require.NoError(t, err)
	assert.Contains(t, out, "print")
}

func TestCodeRenderer_EscapesFences(t *testing.T) {
	out, err := NewCodeRenderer("")("a ``` b")
	require.NoError(t, err)
	assert.Contains(t, out, "```")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3")
	assert.True(t, strings.Contains(buf.String(), "v1.2.3"))
}
