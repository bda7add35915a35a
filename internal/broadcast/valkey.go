// Package broadcast relays session.Registry.Broadcast frames (the
// autonomous-chat text frames) across control plane instances over a
// valkey pub/sub channel, so a renderer client connected to instance B
// still sees the chat text the scheduler produced on instance A. Audio
// frames are emitted per session through each adapter and are not
// relayed.
package broadcast

import (
	"context"
	"fmt"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// Bus publishes and subscribes to one channel name shared by every
// control plane instance in a deployment.
type Bus struct {
	client  valkey.Client
	channel string
}

// New dials addr and verifies connectivity with a ping before
// returning. An empty addr disables the bus entirely: New returns
// (nil, nil), and every method on a nil *Bus is a no-op.
func New(addr, channel string) (*Bus, error) {
	if addr == "" {
		return nil, nil
	}

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("broadcast: connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("broadcast: ping: %w", err)
	}

	return &Bus{client: client, channel: channel}, nil
}

// Publish fans payload out to every other instance subscribed to the
// bus's channel. Safe on a nil Bus.
func (b *Bus) Publish(ctx context.Context, payload []byte) error {
	if b == nil {
		return nil
	}
	return b.client.Do(ctx, b.client.B().Publish().Channel(b.channel).Message(string(payload)).Build()).Error()
}

// Subscribe blocks, delivering every message received on the bus's
// channel to handle, until ctx is cancelled. Safe on a nil Bus, where
// it returns immediately.
func (b *Bus) Subscribe(ctx context.Context, handle func(payload []byte)) error {
	if b == nil {
		return nil
	}
	return b.client.Receive(ctx, b.client.B().Subscribe().Channel(b.channel).Build(), func(msg valkey.PubSubMessage) {
		handle([]byte(msg.Message))
	})
}

// Close releases the underlying connection. Safe on a nil Bus.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.client.Close()
}
