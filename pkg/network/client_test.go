package network

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/illum/orbitsim/pkg/config"
)

func nextEvent(t *testing.T, c *Client, want MessageType) Envelope {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-c.Events():
			if !ok {
				t.Fatalf("events closed while waiting for %q", want)
			}
			if env.Type == want {
				return env
			}
		case <-timeout:
			t.Fatalf("no %q event in time", want)
		}
	}
}

func connectedClient(t *testing.T, env *testEnv) *Client {
	t.Helper()
	c := NewClient(env.cfg.CircuitBreaker, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx, env.wsURL()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient(config.DefaultConfig().CircuitBreaker, nil)
	if _, err := c.SetEccentricity(0.1); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SetEccentricity() before Connect error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, ok := <-c.Events(); ok {
		t.Error("Events() should be closed after Close")
	}
}

func TestClient_Commands(t *testing.T) {
	env := newTestEnv(t, nil)
	c := connectedClient(t, env)
	nextEvent(t, c, MsgState)

	if _, err := c.LoadPreset("earth"); err != nil {
		t.Fatal(err)
	}
	var state StatePayload
	nextEvent(t, c, MsgStateChanged).Decode(&state)
	if state.Labels.MaxSpeed != "Max Speed: 30.28 km/s" {
		t.Errorf("earth max speed = %q", state.Labels.MaxSpeed)
	}

	if _, err := c.SetSemiMajorAxisAU(1); err != nil {
		t.Fatal(err)
	}
	nextEvent(t, c, MsgStateChanged).Decode(&state)
	if state.Quantities.Eccentricity != 0 {
		t.Errorf("eccentricity after axis edit = %v, want 0", state.Quantities.Eccentricity)
	}

	if _, err := c.SetCentralMassText("5.972", "24"); err != nil {
		t.Fatal(err)
	}
	nextEvent(t, c, MsgStateChanged).Decode(&state)
	if state.Labels.MaxSpeed != "Max Speed: 5.16E-2 km/s" {
		t.Errorf("max speed after mass edit = %q", state.Labels.MaxSpeed)
	}

	if _, err := c.SetCentralMass(1.989, 30); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetEccentricity(0.5); err != nil {
		t.Fatal(err)
	}
	if _, err := c.SetSemiMajorAxisText("2"); err != nil {
		t.Fatal(err)
	}
	id, err := c.RequestState()
	if err != nil {
		t.Fatal(err)
	}

	reply := nextEvent(t, c, MsgState)
	if reply.ID != id {
		t.Errorf("state reply id = %q, want %q", reply.ID, id)
	}
	reply.Decode(&state)
	if state.Epoch != 7 {
		t.Errorf("epoch = %d, want 7", state.Epoch)
	}
}

func TestClient_ErrorReply(t *testing.T) {
	env := newTestEnv(t, nil)
	c := connectedClient(t, env)

	id, err := c.LoadPreset("pluto")
	if err != nil {
		t.Fatal(err)
	}

	reply := nextEvent(t, c, MsgError)
	var payload ErrorPayload
	reply.Decode(&payload)
	if reply.ID != id || payload.Code != CodeUnknownPreset {
		t.Errorf("error reply = %s %+v, want %s unknown_preset", reply.ID, payload, id)
	}
}

func TestClient_ConnectFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	url := env.wsURL()
	env.http.Close()

	c := NewClient(env.cfg.CircuitBreaker, nil)
	c.Breaker().BaseDelay = time.Millisecond
	c.Breaker().MaxRetries = 2

	if err := c.Connect(context.Background(), url); err == nil {
		t.Fatal("Connect() to a closed server should fail")
	}
	if _, err := c.RequestState(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("RequestState() error = %v, want ErrNotConnected", err)
	}
}

func TestClient_EventsCloseOnServerShutdown(t *testing.T) {
	env := newTestEnv(t, nil)
	c := connectedClient(t, env)
	nextEvent(t, c, MsgState)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env.server.Shutdown(ctx)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("events channel not closed after server shutdown")
		}
	}
}
