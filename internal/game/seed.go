package game

import "fmt"

// Money ladders for the first and second rounds.
var (
	RoundOneValues = []int{200, 400, 600, 800, 1000}
	RoundTwoValues = []int{400, 800, 1200, 1600, 2000}
)

var demoCategories = [][]string{
	{"World Capitals", "Potent Potables", "The Solar System", "Before & After", "20th Century", "Rhyme Time"},
	{"Shakespeare", "Rivers & Lakes", "Famous Firsts", "Science Fiction", "Opera", "State Nicknames"},
}

// SeedDemoBoards builds a playable three-round demo game with the
// standard money ladders. Prompts are placeholders; real games are
// loaded from a snapshot instead.
func SeedDemoBoards() ([]Board, Metadata) {
	boards := make([]Board, 0, RoundCount)

	for round, values := range [][]int{RoundOneValues, RoundTwoValues} {
		cats := demoCategories[round]
		questions := make([]Question, 0, NormalRows*NormalCols)
		for col, cat := range cats {
			for row, value := range values {
				questions = append(questions, Question{
					Position: Position{Row: row, Col: col},
					Prompt:   fmt.Sprintf("%s for %d", cat, value),
					Answer:   fmt.Sprintf("What is answer %d-%d?", col+1, row+1),
					Value:    value,
				})
			}
		}
		boards = append(boards, NewBoard(cats, questions, false))
	}

	final := NewBoard([]string{"Potpourri"}, []Question{{
		Position: Position{Row: 0, Col: 0},
		Prompt:   "The final clue",
		Answer:   "What is the final answer?",
		Wager:    true,
	}}, true)
	boards = append(boards, final)

	return boards, Metadata{Comments: "Demo game"}
}
