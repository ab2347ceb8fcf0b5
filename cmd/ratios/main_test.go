package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt(t *testing.T) {
	var out bytes.Buffer
	line, err := prompt(strings.NewReader(" AAPL, msft \nignored\n"), &out)
	require.NoError(t, err)

	assert.Equal(t, " AAPL, msft \n", line)
	assert.Equal(t, "Enter stock tickers separated by commas: ", out.String())
}

func TestPromptWithoutNewline(t *testing.T) {
	line, err := prompt(strings.NewReader("GOOG"), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "GOOG", line)
}
