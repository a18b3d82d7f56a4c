package server

import (
	"encoding/json"
	"sync"

	"github.com/quizfire/quizfire/internal/engine"
)

// DisplayEvent is one engine UI update, published to every subscribed
// view (host monitor, audience monitor, web scoreboard).
type DisplayEvent struct {
	Type    string              `json:"type"`
	On      *bool               `json:"on,omitempty"`
	Level   *int                `json:"level,omitempty"`
	Players []engine.PlayerView `json:"players,omitempty"`
}

// Broker is an in-process pub/sub for display events. It doubles as
// the engine-facing display: every property set or operation the
// engine broadcasts becomes one JSON event on every subscriber.
type Broker struct {
	mu   sync.RWMutex
	subs map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan []byte]struct{})}
}

// Subscribe returns a channel receiving JSON-encoded display events.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers.
func (b *Broker) Publish(event DisplayEvent) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}

func (b *Broker) flag(typ string, on bool) {
	b.Publish(DisplayEvent{Type: typ, On: &on})
}

// Broker implements engine.Display.

func (b *Broker) SetLit(on bool)        { b.flag("lit", on) }
func (b *Broker) SetSpaceHints(on bool) { b.flag("space_hints", on) }
func (b *Broker) SetArrowHints(on bool) { b.flag("arrow_hints", on) }
func (b *Broker) SetInfoLevel(level int) {
	b.Publish(DisplayEvent{Type: "info_level", Level: &level})
}
func (b *Broker) SetFinalVisible(visible bool) { b.flag("final_visible", visible) }
func (b *Broker) Flash()                       { b.Publish(DisplayEvent{Type: "flash"}) }
func (b *Broker) RunLights()                   { b.Publish(DisplayEvent{Type: "run_lights"}) }
func (b *Broker) StopLights()                  { b.Publish(DisplayEvent{Type: "stop_lights"}) }
func (b *Broker) RefreshPlayers(players []engine.PlayerView) {
	b.Publish(DisplayEvent{Type: "players", Players: players})
}

// Broker also implements engine.Soundboard: playback lives in the
// views, so the music cues ride the same event stream.

func (b *Broker) PlayFinalMusic() { b.Publish(DisplayEvent{Type: "play_final_music"}) }
func (b *Broker) StopMusic()      { b.Publish(DisplayEvent{Type: "stop_music"}) }

var (
	_ engine.Display    = (*Broker)(nil)
	_ engine.Soundboard = (*Broker)(nil)
)
