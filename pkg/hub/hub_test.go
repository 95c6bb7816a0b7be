package hub

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

// seq is a frame that encodes as its number and the requested bar count.
type seq int

func (s seq) Encode(bars int) ([]byte, error) {
	return []byte(strconv.Itoa(int(s)) + "/" + strconv.Itoa(bars)), nil
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("hub did not start")
		}
		time.Sleep(time.Millisecond)
	}
	return h, cancel
}

func attach(h *Hub, bars, buffer int) *Client {
	c := &Client{hub: h, bars: bars, send: make(chan Frame, buffer)}
	h.register <- c
	return c
}

func waitCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", h.ClientCount(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h, _ := startHub(t)
	a := attach(h, 0, 4)
	b := attach(h, 16, 4)
	waitCount(t, h, 2)

	h.Broadcast(seq(1))

	tests := []struct {
		name   string
		client *Client
		want   string
	}{
		{"all bands", a, "1/0"},
		{"sixteen bars", b, "1/16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			select {
			case f := <-tt.client.send:
				data, err := f.Encode(tt.client.bars)
				if err != nil || string(data) != tt.want {
					t.Errorf("got %q (%v), want %q", data, err, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatal("received nothing")
			}
		})
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h, _ := startHub(t)
	slow := attach(h, 0, 1)
	waitCount(t, h, 1)

	h.Broadcast(seq(1))
	h.Broadcast(seq(2))
	waitCount(t, h, 0)

	f, ok := <-slow.send
	if !ok || f != seq(1) {
		t.Errorf("expected first frame before close, got %v ok=%v", f, ok)
	}
	if _, ok := <-slow.send; ok {
		t.Error("expected send channel closed after drop")
	}
	if h.Evicted() != 1 {
		t.Errorf("evicted = %d, want 1", h.Evicted())
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle", nil) // not running, nothing drains the queue

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Broadcast(seq(i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked")
	}
	if h.Dropped() == 0 {
		t.Error("expected dropped frames")
	}
}

func TestHub_Unregister(t *testing.T) {
	h, _ := startHub(t)
	c := attach(h, 0, 1)
	waitCount(t, h, 1)

	h.unregister <- c
	waitCount(t, h, 0)
	if _, ok := <-c.send; ok {
		t.Error("expected send channel closed on unregister")
	}
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	h, cancel := startHub(t)
	c := attach(h, 0, 1)
	waitCount(t, h, 1)

	cancel()
	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client not released on stop")
	}

	<-h.stopped
	if h.IsRunning() {
		t.Error("hub still reports running")
	}
	if _, err := NewClient(h, nil, 0); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}
