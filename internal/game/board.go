// Package game holds the board data and player state for one trivia game:
// three rounds of categorized questions (two 6x5 boards and a single
// final question) plus the contestant roster. Boards are immutable once
// loaded; players carry the only mutable state (score, wager, answer).
package game

import (
	"errors"
	"fmt"
)

const (
	// NormalCols and NormalRows are the grid dimensions of a non-final
	// board: 6 categories wide, 5 value tiers deep.
	NormalCols = 6
	NormalRows = 5

	// RoundCount is the fixed number of rounds in a game, the last of
	// which is the final round.
	RoundCount = 3
)

var ErrInvalidBoards = errors.New("invalid board set")

// Position locates a question within its board's grid. Col selects the
// category, Row the value tier. The final board uses (0, 0).
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Question is a single clue. Immutable after load.
type Question struct {
	Position Position `json:"position"`
	Prompt   string   `json:"prompt"`
	Answer   string   `json:"answer"`
	Value    int      `json:"value"`
	Wager    bool     `json:"wager"` // daily double: requires a wager before reveal
}

// Board is one round of play: a categorized grid of questions, or a
// single question for the final round.
type Board struct {
	Categories []string   `json:"categories"`
	Rows       int        `json:"rows"`
	Cols       int        `json:"cols"`
	Final      bool       `json:"final"`
	Questions  []Question `json:"questions"`
}

// NewBoard builds a board with the standard dimensions for its kind.
func NewBoard(categories []string, questions []Question, final bool) Board {
	b := Board{
		Categories: categories,
		Final:      final,
		Questions:  questions,
	}
	if final {
		b.Rows, b.Cols = 1, 1
	} else {
		b.Rows, b.Cols = NormalRows, NormalCols
	}
	return b
}

// Lookup returns the question at the given grid position.
func (b *Board) Lookup(pos Position) (*Question, bool) {
	for i := range b.Questions {
		if b.Questions[i].Position == pos {
			return &b.Questions[i], true
		}
	}
	return nil, false
}

// Complete reports whether every question on this board appears in done.
func (b *Board) Complete(done map[Position]bool) bool {
	for i := range b.Questions {
		if !done[b.Questions[i].Position] {
			return false
		}
	}
	return true
}

// ValidateBoards checks a loaded board set before a game may start:
// exactly three rounds, full grids, unique in-bounds positions, and a
// single-question final. Errors wrap ErrInvalidBoards so callers can
// distinguish unplayable data from I/O failures.
func ValidateBoards(boards []Board) error {
	if len(boards) != RoundCount {
		return fmt.Errorf("%w: got %d rounds, want %d", ErrInvalidBoards, len(boards), RoundCount)
	}

	for i, b := range boards {
		final := i == RoundCount-1
		if b.Final != final {
			return fmt.Errorf("%w: round %d final flag is %t", ErrInvalidBoards, i, b.Final)
		}

		want := b.Rows * b.Cols
		if len(b.Questions) != want {
			return fmt.Errorf("%w: round %d has %d questions, want %d", ErrInvalidBoards, i, len(b.Questions), want)
		}

		seen := make(map[Position]bool, want)
		for _, q := range b.Questions {
			p := q.Position
			if p.Row < 0 || p.Row >= b.Rows || p.Col < 0 || p.Col >= b.Cols {
				return fmt.Errorf("%w: round %d question out of bounds at (%d,%d)", ErrInvalidBoards, i, p.Row, p.Col)
			}
			if seen[p] {
				return fmt.Errorf("%w: round %d duplicate question at (%d,%d)", ErrInvalidBoards, i, p.Row, p.Col)
			}
			seen[p] = true
		}
	}

	return nil
}
