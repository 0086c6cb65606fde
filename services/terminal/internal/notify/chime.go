package notify

import (
	"context"
	"fmt"
	"sync"
)

// Player drives the alert sound.
type Player interface {
	Rewind() error
	Play(ctx context.Context) error
}

// Chime plays the alert sound. Every play starts from the beginning and
// cancels a playback that is still running, so alerts never overlap.
type Chime struct {
	player Player

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

func NewChime(player Player) *Chime {
	return &Chime{player: player}
}

func (c *Chime) Name() string {
	return "sound"
}

func (c *Chime) Deliver(ctx context.Context, n Notification) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++
	seq := c.seq
	if err := c.player.Rewind(); err != nil {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("cannot rewind chime: %w", err)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.seq == seq {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	if err := c.player.Play(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("cannot play chime: %w", err)
	}
	return nil
}

// SinkPlayer asks the UI to restart its alert sound.
type SinkPlayer struct {
	sink Sink
}

func NewSinkPlayer(sink Sink) *SinkPlayer {
	return &SinkPlayer{sink: sink}
}

func (p *SinkPlayer) Rewind() error {
	p.sink.Emit("sound", map[string]string{"action": "rewind"})
	return nil
}

func (p *SinkPlayer) Play(ctx context.Context) error {
	p.sink.Emit("sound", map[string]string{"action": "play"})
	return nil
}
