package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finboard/internal/core"
)

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", maskToken(""))
	assert.Equal(t, "*****", maskToken("short"))
	assert.Equal(t, "abcd...wxyz", maskToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestReadToken(t *testing.T) {
	got, err := readToken("  tok-123 ", strings.NewReader("ignored"))
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got)

	got, err = readToken("-", strings.NewReader("from-stdin\nsecond line"))
	require.NoError(t, err)
	assert.Equal(t, "from-stdin", got)

	got, err = readToken("-", strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)
}

func TestDescribeToken(t *testing.T) {
	var buf bytes.Buffer
	describeToken(&buf, "", time.Now())
	assert.Equal(t, "Token:  none\n", buf.String())

	buf.Reset()
	describeToken(&buf, "opaque-session-token", time.Now())
	assert.Contains(t, buf.String(), "opaq...oken")
	assert.Contains(t, buf.String(), "Status: valid")
}

func TestPrintRuns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRuns(&buf, nil))
	assert.Equal(t, "No refresh passes recorded\n", buf.String())

	started := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	buf.Reset()
	require.NoError(t, printRuns(&buf, []core.RefreshRun{{
		StartedAt:    started,
		FinishedAt:   started.Add(250 * time.Millisecond),
		Trigger:      "timer",
		Silent:       true,
		Outcome:      core.OutcomeError,
		IncomeCount:  2,
		ExpenseCount: 3,
		Error:        "boom",
	}}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "STARTED"))
	assert.Contains(t, lines[1], "timer")
	assert.Contains(t, lines[1], "250ms")
	assert.Contains(t, lines[1], "boom")
}

func TestCommandTree(t *testing.T) {
	cmd := tokenCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"set", "clear", "show"}, names)

	h := historyCmd()
	limit, err := h.Flags().GetInt("limit")
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
}
