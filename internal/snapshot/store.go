package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

// Store persists snapshots to SQLite. One game per database: the
// snapshots table holds a single row, rewritten on every save.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save rewrites the durable subset in one transaction.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	boards, err := json.Marshal(snap.Boards)
	if err != nil {
		return fmt.Errorf("encoding boards: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, air_date, comments, current_round, boards, saved_at)
		VALUES (1, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT (id) DO UPDATE SET
			air_date = excluded.air_date,
			comments = excluded.comments,
			current_round = excluded.current_round,
			boards = excluded.boards,
			saved_at = excluded.saved_at
	`, snap.Meta.AirDate, snap.Meta.Comments, snap.CurrentRound, string(boards))
	if err != nil {
		return fmt.Errorf("writing snapshot row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM players`); err != nil {
		return fmt.Errorf("clearing players: %w", err)
	}
	for _, p := range snap.Players {
		wager := sql.NullInt64{Int64: int64(p.Wager), Valid: p.HasWagered}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO players (id, name, score, wager, final_answer)
			VALUES (?, ?, ?, ?, ?)
		`, p.ID.String(), p.Name, p.Score, wager, p.FinalAnswer)
		if err != nil {
			return fmt.Errorf("writing player %s: %w", p.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM completed_questions`); err != nil {
		return fmt.Errorf("clearing completed questions: %w", err)
	}
	for _, cq := range snap.Completed {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO completed_questions (round, row, col)
			VALUES (?, ?, ?)
		`, cq.Round, cq.Position.Row, cq.Position.Col)
		if err != nil {
			return fmt.Errorf("writing completed question: %w", err)
		}
	}

	return tx.Commit()
}

// Load reads the saved durable subset. The caller reconstructs the
// game through the normal initialization path and overlays this.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	var boardsJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT air_date, comments, current_round, boards
		FROM snapshots WHERE id = 1
	`).Scan(&snap.Meta.AirDate, &snap.Meta.Comments, &snap.CurrentRound, &boardsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot row: %w", err)
	}
	if err := json.Unmarshal([]byte(boardsJSON), &snap.Boards); err != nil {
		return nil, fmt.Errorf("decoding boards: %w", err)
	}
	// The driver sniffs date-shaped TEXT and hands it back as an RFC 3339
	// timestamp. Fold it back to the plain date that was stored.
	if ts, err := time.Parse(time.RFC3339, snap.Meta.AirDate); err == nil {
		snap.Meta.AirDate = ts.Format(time.DateOnly)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, score, wager, final_answer FROM players
	`)
	if err != nil {
		return nil, fmt.Errorf("reading players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ps    PlayerState
			id    string
			wager sql.NullInt64
		)
		if err := rows.Scan(&id, &ps.Name, &ps.Score, &wager, &ps.FinalAnswer); err != nil {
			return nil, fmt.Errorf("scanning player: %w", err)
		}
		ps.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing player id %q: %w", id, err)
		}
		if wager.Valid {
			ps.Wager = int(wager.Int64)
			ps.HasWagered = true
		}
		snap.Players = append(snap.Players, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating players: %w", err)
	}

	cqRows, err := s.db.QueryContext(ctx, `
		SELECT round, row, col FROM completed_questions
	`)
	if err != nil {
		return nil, fmt.Errorf("reading completed questions: %w", err)
	}
	defer cqRows.Close()
	for cqRows.Next() {
		var cq CompletedQuestion
		if err := cqRows.Scan(&cq.Round, &cq.Position.Row, &cq.Position.Col); err != nil {
			return nil, fmt.Errorf("scanning completed question: %w", err)
		}
		snap.Completed = append(snap.Completed, cq)
	}
	if err := cqRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating completed questions: %w", err)
	}

	return snap, nil
}
