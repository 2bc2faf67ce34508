package main

import (
	"context"
	"fmt"

	"github.com/bjaus/views"
)

// echo sends every text frame back to its sender.
type echo struct {
	views.NopLifecycle
}

func (echo) OnMessage(_ context.Context, v *views.WebsocketView, msg string) error {
	return v.Send(msg)
}

// chat relays text frames to every member of the room.
type chat struct {
	room *views.Hub
}

func (c *chat) OnOpen(_ context.Context, v *views.WebsocketView) error {
	c.room.Add(v.Session())
	c.room.Broadcast(presence(c.room.Count()))
	return nil
}

func (c *chat) OnMessage(_ context.Context, v *views.WebsocketView, msg string) error {
	c.room.Broadcast(v.Session().ID()[:8] + ": " + msg)
	return nil
}

func (c *chat) OnClose(_ context.Context, v *views.WebsocketView) {
	c.room.Remove(v.Session())
	c.room.Broadcast(presence(c.room.Count()))
}

func presence(n int) string {
	if n == 1 {
		return "1 member online"
	}
	return fmt.Sprintf("%d members online", n)
}
