package notify

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	ctx := context.Background()
	c := &Collector{}

	_, ok := c.Last()
	assert.False(t, ok)

	Success(ctx, c, "Appointment booked")
	Error(ctx, c, "Failed to load appointments", true)

	require.Len(t, c.Notices(), 2)
	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, Notice{Level: LevelError, Message: "Failed to load appointments", Retryable: true}, last)

	// nil notifier is a no-op
	Success(ctx, nil, "ignored")
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	n.Notify(context.Background(), Notice{Level: LevelError, Message: "Cancellation failed"})
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"message":"Cancellation failed"`)

	buf.Reset()
	n.Notify(context.Background(), Notice{Level: LevelSuccess, Message: "Appointment cancelled"})
	assert.Contains(t, buf.String(), `"level":"info"`)
	assert.Contains(t, buf.String(), `"level_hint":"success"`)
}
