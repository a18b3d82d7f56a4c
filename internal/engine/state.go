package engine

import (
	"time"

	"github.com/quizfire/quizfire/internal/game"
)

// CellView is one board cell as shown to views.
type CellView struct {
	Position  game.Position `json:"position"`
	Value     int           `json:"value"`
	Completed bool          `json:"completed"`
}

// ActiveView describes the open question. Answer is only populated for
// the host view; the HTTP layer strips it for everyone else.
type ActiveView struct {
	Position  game.Position `json:"position"`
	Value     int           `json:"value"`
	Prompt    string        `json:"prompt"`
	Answer    string        `json:"answer,omitempty"`
	Accepting bool          `json:"accepting"`
	Remaining time.Duration `json:"remaining"`
}

// StateView is a point-in-time copy of everything a view needs.
type StateView struct {
	Round      int          `json:"round"`
	Final      bool         `json:"final"`
	Categories []string     `json:"categories"`
	Board      []CellView   `json:"board"`
	Active     *ActiveView  `json:"active,omitempty"`
	Players    []PlayerView `json:"players"`
	Answering  string       `json:"answering,omitempty"`
	Over       bool         `json:"over"`
	Winner     string       `json:"winner,omitempty"`
}

// State copies the current game state for rendering. Safe to call from
// any goroutine.
func (e *Engine) State() StateView {
	e.mu.Lock()
	defer e.mu.Unlock()

	board := e.currentBoard()
	sv := StateView{
		Round:      e.round,
		Final:      board.Final,
		Categories: append([]string(nil), board.Categories...),
		Players:    e.playerViewsLocked(),
		Over:       e.over,
	}

	for i := range board.Questions {
		q := &board.Questions[i]
		sv.Board = append(sv.Board, CellView{
			Position:  q.Position,
			Value:     q.Value,
			Completed: e.completed[q.Position],
		})
	}

	if e.active != nil {
		av := &ActiveView{
			Position:  e.active.Position,
			Value:     e.active.Value,
			Prompt:    e.active.Prompt,
			Answer:    e.active.Answer,
			Accepting: e.accepting,
		}
		if e.timer != nil {
			av.Remaining = e.timer.Remaining()
		}
		sv.Active = av
	}
	if e.answering != nil {
		sv.Answering = e.answering.Name
	}
	if e.winner != nil {
		sv.Winner = e.winner.Name
	}
	return sv
}
