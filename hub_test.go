package views_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/views"
	"github.com/bjaus/views/viewtest"
)

func TestHub_nil_is_safe(t *testing.T) {
	t.Parallel()

	var h *views.Hub
	h.Add(nil)
	h.Remove(nil)
	assert.Zero(t, h.Broadcast("x"))
	assert.Zero(t, h.Count())

	h = views.NewHub("empty")
	h.Add(nil)
	assert.Zero(t, h.Count())
	assert.Zero(t, h.Broadcast("x"))
}

func TestHub_drops_closed_sessions(t *testing.T) {
	t.Parallel()

	var buf syncBuffer
	hub := views.NewHub("lobby").WithLogger(zerolog.New(&buf))
	opened := make(chan struct{})

	// The session is never removed on close, so the hub only learns about
	// it on the next broadcast.
	c, results := serveSocket(t, views.LifecycleFuncs{
		Open: func(_ context.Context, v *views.WebsocketView) error {
			hub.Add(v.Session())
			close(opened)
			return nil
		},
	})

	conn := viewtest.Dial(t, c, "/")
	<-opened
	require.Equal(t, 1, hub.Count())

	viewtest.CloseNormal(t, conn)
	res := waitResult(t, results)
	require.NoError(t, res.err)
	require.True(t, res.view.Session().Closed())

	assert.Zero(t, hub.Broadcast("anyone?"))
	assert.Zero(t, hub.Count())
	assert.Contains(t, buf.String(), "ws broadcast failed, dropping session")
	assert.Contains(t, buf.String(), `"hub":"lobby"`)
	assert.Contains(t, buf.String(), res.view.Session().ID())
}
