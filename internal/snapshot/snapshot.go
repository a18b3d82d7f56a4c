// Package snapshot persists the durable subset of a game (boards,
// metadata, players, completed questions) to SQLite. Transient state
// (timers, key bindings, display registrations) is never stored; a
// restarted server rebuilds it by running the normal engine
// initialization and overlaying the snapshot.
package snapshot

import (
	"github.com/google/uuid"

	"github.com/quizfire/quizfire/internal/game"
)

// PlayerState is the durable portion of one contestant.
type PlayerState struct {
	ID          uuid.UUID
	Name        string
	Score       int
	Wager       int
	HasWagered  bool
	FinalAnswer string
}

// CompletedQuestion records one answered board position.
type CompletedQuestion struct {
	Round    int
	Position game.Position
}

// Snapshot is everything a game needs to survive a restart.
type Snapshot struct {
	Meta         game.Metadata
	Boards       []game.Board
	CurrentRound int
	Players      []PlayerState
	Completed    []CompletedQuestion
}
