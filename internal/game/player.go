package game

import "github.com/google/uuid"

// Player is one contestant. The ID is generated once at creation and is
// the player's identity for the rest of the game; it is never reused
// across games. Score, wager, and final answer are mutated only by the
// engine's judgement and final-round operations.
type Player struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Score       int       `json:"score"`
	Wager       int       `json:"wager"`
	HasWagered  bool      `json:"hasWagered"`
	FinalAnswer string    `json:"finalAnswer"`
}

// NewPlayer creates a contestant with a fresh identity and a zero score.
func NewPlayer(name string) *Player {
	return &Player{
		ID:   uuid.New(),
		Name: name,
	}
}

// Metadata is the descriptive information persisted alongside a game.
type Metadata struct {
	AirDate  string `json:"airDate"`
	Comments string `json:"comments"`
}
