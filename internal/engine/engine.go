// Package engine is the authoritative state machine for one live
// trivia game: question lifecycle, timed response windows, first-come
// buzz arbitration, scoring, round progression, and the final-round
// reveal sequence. Buzzes, judge keys, and timer expirations arrive
// from independent goroutines; a single mutex serializes every state
// transition, so at most one buzz wins an open response window and a
// late timer fire can never race into a closed question.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/quizfire/quizfire/internal/game"
	"github.com/quizfire/quizfire/internal/snapshot"
)

// Judge input keys.
const (
	KeyLeft  = "left"  // rule correct
	KeyRight = "right" // rule incorrect
	KeySpace = "space" // phase-dependent "continue"
)

// Binding ids registered on the KeyMap. All "space" bindings are
// mutually exclusive by activation.
const (
	bindCorrect       = "correct-response"
	bindIncorrect     = "incorrect-response"
	bindBackToBoard   = "back-to-board"
	bindOpenResponses = "open-responses"
	bindNextRound     = "next-round"
	bindNextSlide     = "next-slide"
)

const (
	// DefaultBuzzWindow bounds an open response window in normal rounds.
	DefaultBuzzWindow = 4 * time.Second
	// DefaultFinalWindow is the final-round answer-collection window,
	// sized to the think music.
	DefaultFinalWindow = 31 * time.Second
)

var (
	ErrNoActiveQuestion = errors.New("no active question")
	ErrQuestionOpen     = errors.New("a question is already open")
	ErrQuestionDone     = errors.New("question already completed")
	ErrGameOver         = errors.New("game is over")
	ErrWagerSet         = errors.New("wager already set")
	ErrBadSnapshot      = errors.New("unplayable snapshot")
)

// BuzzerController is the contestant-peripheral collaborator. The
// engine drives it; it never calls back in under its own lock.
type BuzzerController interface {
	// ActivateBuzzer acknowledges the floor-holder to their device.
	ActivateBuzzer(p *game.Player)
	// PromptAnswers opens final-round answer collection on all devices.
	PromptAnswers()
	// OpenWagers opens final-round wager collection on all devices.
	OpenWagers()
}

// Soundboard plays audio cues. Playback itself lives outside the engine.
type Soundboard interface {
	PlayFinalMusic()
	StopMusic()
}

// Saver persists a durable snapshot. Saves are best-effort and must
// never block gameplay.
type Saver interface {
	Save(ctx context.Context, snap *snapshot.Snapshot) error
}

// Config assembles an Engine. Boards and Meta describe a fresh game;
// Restore, when set, supplies boards, metadata, and the durable player
// and progress state instead. Zero-value collaborators are replaced
// with no-ops so tests can wire only what they observe.
type Config struct {
	Boards      []game.Board
	Meta        game.Metadata
	Restore     *snapshot.Snapshot
	Logger      *slog.Logger
	Clock       clockwork.Clock
	Displays    *Displays
	Sound       Soundboard
	Saver       Saver
	BuzzWindow  time.Duration
	FinalWindow time.Duration
}

// Engine owns all game state. Every exported operation takes the
// engine mutex; collaborator calls (displays, buzzers, sound) are made
// while it is held and must not call back into the engine.
type Engine struct {
	log      *slog.Logger
	clock    clockwork.Clock
	displays *Displays
	keys     *KeyMap
	sound    Soundboard
	saver    Saver

	buzzWindow  time.Duration
	finalWindow time.Duration

	mu      sync.Mutex
	buzzers BuzzerController

	boards  []game.Board
	meta    game.Metadata
	players []*game.Player

	round        int
	active       *game.Question
	accepting    bool
	answering    *game.Player
	prevAnswerer *game.Player
	completed    map[game.Position]bool
	timer        *Timer
	armedAt      time.Time

	judgeRound int
	judgeStage int
	sorted     []*game.Player
	over       bool
	winner     *game.Player
}

// New validates the board set and builds an engine in the BoardShown
// state. Restoring runs the same initialization and then overlays the
// snapshot's durable subset; timers, bindings, and display state are
// always fresh.
func New(cfg Config) (*Engine, error) {
	boards, meta := cfg.Boards, cfg.Meta
	if cfg.Restore != nil {
		boards, meta = cfg.Restore.Boards, cfg.Restore.Meta
	}
	if err := game.ValidateBoards(boards); err != nil {
		return nil, fmt.Errorf("loading game: %w", err)
	}
	if snap := cfg.Restore; snap != nil {
		if snap.CurrentRound < 0 || snap.CurrentRound >= len(boards) {
			return nil, fmt.Errorf("loading game: %w: round %d out of range", ErrBadSnapshot, snap.CurrentRound)
		}
	}

	e := &Engine{
		log:         cfg.Logger,
		clock:       cfg.Clock,
		displays:    cfg.Displays,
		keys:        NewKeyMap(),
		sound:       cfg.Sound,
		saver:       cfg.Saver,
		buzzWindow:  cfg.BuzzWindow,
		finalWindow: cfg.FinalWindow,
		boards:      boards,
		meta:        meta,
		completed:   make(map[game.Position]bool),
		judgeRound:  -1,
		judgeStage:  2,
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.displays == nil {
		e.displays = NewDisplays()
	}
	if e.sound == nil {
		e.sound = noopSound{}
	}
	if e.buzzWindow <= 0 {
		e.buzzWindow = DefaultBuzzWindow
	}
	if e.finalWindow <= 0 {
		e.finalWindow = DefaultFinalWindow
	}

	e.keys.Bind(bindCorrect, KeyLeft, e.correctLocked, true)
	e.keys.Bind(bindIncorrect, KeyRight, e.incorrectLocked, true)
	e.keys.Bind(bindBackToBoard, KeySpace, e.backToBoardLocked, false)
	e.keys.Bind(bindOpenResponses, KeySpace, e.openResponsesLocked, false)
	e.keys.Bind(bindNextRound, KeySpace, e.nextRoundLocked, false)
	e.keys.Bind(bindNextSlide, KeySpace, e.finalNextSlideLocked, true)

	if snap := cfg.Restore; snap != nil {
		e.round = snap.CurrentRound
		for _, ps := range snap.Players {
			e.players = append(e.players, &game.Player{
				ID:          ps.ID,
				Name:        ps.Name,
				Score:       ps.Score,
				Wager:       ps.Wager,
				HasWagered:  ps.HasWagered,
				FinalAnswer: ps.FinalAnswer,
			})
		}
		for _, cq := range snap.Completed {
			if cq.Round == snap.CurrentRound {
				e.completed[cq.Position] = true
			}
		}
	}

	return e, nil
}

// SetBuzzers wires the contestant-peripheral collaborator. Called once
// at startup, after the transport (which needs the engine) exists.
func (e *Engine) SetBuzzers(b BuzzerController) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buzzers = b
}

// RegisterDisplay adds a view to the engine's display fan-out.
func (e *Engine) RegisterDisplay(d Display) {
	e.displays.Register(d)
	e.mu.Lock()
	defer e.mu.Unlock()
	d.RefreshPlayers(e.playerViewsLocked())
}

// AddPlayer registers a contestant before or during play and returns
// their stable identity.
func (e *Engine) AddPlayer(name string) (*game.Player, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.over {
		return nil, ErrGameOver
	}
	p := game.NewPlayer(name)
	e.players = append(e.players, p)
	e.log.Info("player joined", "player", p.Name, "id", p.ID)
	e.refreshPlayersLocked()
	return p, nil
}

// PlayerByID resolves a contestant identity.
func (e *Engine) PlayerByID(id uuid.UUID) (*game.Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// DispatchKey feeds one raw judge key event through the key router.
// Keys with no active binding do nothing.
func (e *Engine) DispatchKey(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys.Dispatch(key)
}

func (e *Engine) currentBoard() *game.Board {
	return &e.boards[e.round]
}

// SelectQuestion takes a question off the board and arms the one-shot
// open-responses affordance. The board stays shown until the judge
// opens responses.
func (e *Engine) SelectQuestion(pos game.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.over {
		return ErrGameOver
	}
	board := e.currentBoard()
	if board.Final {
		return e.openFinalLocked()
	}
	q, ok := board.Lookup(pos)
	if !ok {
		return fmt.Errorf("no question at (%d,%d)", pos.Row, pos.Col)
	}
	if e.active != nil {
		return ErrQuestionOpen
	}
	if e.completed[pos] {
		return ErrQuestionDone
	}

	e.active = q
	e.keys.Activate(bindOpenResponses)
	e.displays.SetSpaceHints(true)
	e.log.Info("question selected", "row", pos.Row, "col", pos.Col, "value", q.Value)
	return nil
}

// OpenFinal reveals the final-round question and arms open-responses.
func (e *Engine) OpenFinal() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openFinalLocked()
}

func (e *Engine) openFinalLocked() error {
	board := e.currentBoard()
	if !board.Final {
		return errors.New("current round is not the final round")
	}
	if e.active != nil {
		return ErrQuestionOpen
	}
	e.active = &board.Questions[0]
	e.keys.Activate(bindOpenResponses)
	e.displays.SetSpaceHints(true)
	e.log.Info("final question revealed")
	return nil
}

// OpenResponses opens the timed response window for the active
// question. In the final round it instead starts answer collection
// with the long window and the think music.
func (e *Engine) OpenResponses() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return ErrNoActiveQuestion
	}
	e.openResponsesLocked()
	return nil
}

func (e *Engine) openResponsesLocked() {
	if e.active == nil {
		return
	}
	e.displays.SetSpaceHints(false)
	e.displays.SetLit(true)

	if e.currentBoard().Final {
		if e.buzzers != nil {
			e.buzzers.PromptAnswers()
		}
		e.sound.PlayFinalMusic()
		e.timer = NewTimer(e.clock, e.finalWindow, e.onTimerExpired)
		e.timer.Start()
		e.log.Info("final responses open", "window", e.finalWindow)
		return
	}

	e.accepting = true
	e.armedAt = e.clock.Now()
	// The timer survives incorrect answers with its remaining time, so
	// it is created once per question and resumed thereafter. Resume on
	// a running timer is a no-op.
	if e.timer == nil {
		e.timer = NewTimer(e.clock, e.buzzWindow, e.onTimerExpired)
	}
	e.timer.Resume()
	e.log.Info("responses open", "remaining", e.timer.Remaining())
}

// Buzz claims the floor for a contestant. Exactly one buzz is accepted
// per open response window: the first call to take the engine lock
// wins, clears accepting, and every later call is rejected. The
// contestant who most recently lost the floor on this question is
// rejected even after the window reopens. Returns whether the buzz
// was accepted.
func (e *Engine) Buzz(p *game.Player) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.accepting || (e.prevAnswerer != nil && e.prevAnswerer.ID == p.ID) {
		e.log.Debug("buzz rejected", "player", p.Name)
		return false
	}

	e.log.Info("buzz accepted", "player", p.Name,
		"latency", e.clock.Since(e.armedAt))

	e.accepting = false
	e.timer.Pause()
	e.prevAnswerer = p
	e.answering = p

	if e.buzzers != nil {
		e.buzzers.ActivateBuzzer(p)
	}
	e.displays.RunLights()
	e.keys.Activate(bindCorrect)
	e.keys.Activate(bindIncorrect)
	e.displays.SetArrowHints(true)
	e.displays.SetLit(false)
	return true
}

// CorrectAnswer rules the floor-holder's response correct. Gated on
// the judgement binding being active, like the key router.
func (e *Engine) CorrectAnswer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keys.Active(bindCorrect) {
		return
	}
	e.correctLocked()
}

func (e *Engine) correctLocked() {
	if e.answering == nil {
		return
	}
	e.log.Info("ruled correct", "player", e.answering.Name)

	if !e.currentBoard().Final {
		e.timer.Cancel()
		e.answering.Score += e.active.Value
		e.backToBoardLocked()
		e.displays.SetLit(false)
	} else {
		e.answering.Score += e.answering.Wager
	}
	e.answerGivenLocked()
}

// IncorrectAnswer rules the floor-holder's response incorrect. In
// normal rounds the response window reopens with the preserved
// remaining time; the penalized contestant stays blocked.
func (e *Engine) IncorrectAnswer() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keys.Active(bindIncorrect) {
		return
	}
	e.incorrectLocked()
}

func (e *Engine) incorrectLocked() {
	if e.answering == nil {
		return
	}
	e.log.Info("ruled incorrect", "player", e.answering.Name)

	if !e.currentBoard().Final {
		e.answering.Score -= e.active.Value
		e.openResponsesLocked()
	} else {
		e.answering.Score -= e.answering.Wager
	}
	e.answerGivenLocked()
}

func (e *Engine) answerGivenLocked() {
	e.keys.Deactivate(bindCorrect)
	e.keys.Deactivate(bindIncorrect)
	if !e.currentBoard().Final {
		e.displays.StopLights()
		e.answering = nil
	} else {
		e.finalNextSlideLocked()
		e.keys.Activate(bindNextSlide)
		e.displays.SetSpaceHints(true)
	}
	e.displays.SetArrowHints(false)
	e.refreshPlayersLocked()
}

// onTimerExpired runs on the timer goroutine when a response window
// elapses with nobody successful. The fire commits on the timer's own
// lock, so by the time the engine lock is held a buzz may have claimed
// the window, or the question may already be closed. Such a fire is
// stale and must not stump into arbitration.
func (e *Engine) onTimerExpired() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.answering != nil || e.active == nil {
		return
	}
	e.stumpedLocked()
}

// Stumped closes the response window without a winner and arms the
// judge's continue affordance.
func (e *Engine) Stumped() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stumpedLocked()
}

func (e *Engine) stumpedLocked() {
	e.log.Info("stumped")
	e.keys.Deactivate(bindCorrect)
	e.keys.Deactivate(bindIncorrect)
	e.accepting = false

	e.displays.Flash()
	e.displays.SetSpaceHints(true)
	if e.currentBoard().Final {
		e.sound.StopMusic()
		e.keys.Activate(bindNextSlide)
	} else {
		e.keys.Activate(bindBackToBoard)
	}
}

// BackToBoard closes the active question: it joins the completed set,
// the per-question state resets, and a background snapshot save is
// kicked off. When the round is complete the next-round affordance is
// armed. Re-entry is impossible: the question is cleared before the
// one-shot binding could be re-armed.
func (e *Engine) BackToBoard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.backToBoardLocked()
}

func (e *Engine) backToBoardLocked() {
	if e.active == nil {
		return
	}
	e.log.Info("back to board")
	e.keys.Deactivate(bindBackToBoard)
	e.displays.SetSpaceHints(false)
	e.timer = nil
	e.completed[e.active.Position] = true
	e.active = nil
	e.prevAnswerer = nil
	e.saveLocked()

	if e.currentBoard().Complete(e.completed) {
		e.keys.Activate(bindNextRound)
		e.displays.SetSpaceHints(true)
	}
}

// NextRound advances play to the next board. Entering the final round
// opens wager collection on the contestant devices.
func (e *Engine) NextRound() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextRoundLocked()
}

func (e *Engine) nextRoundLocked() {
	if e.round >= game.RoundCount-1 {
		return
	}
	e.displays.SetSpaceHints(false)
	e.completed = make(map[game.Position]bool)
	e.round++
	e.log.Info("next round", "round", e.round)
	if e.currentBoard().Final {
		if e.buzzers != nil {
			e.buzzers.OpenWagers()
		}
	}
}

// Wager records a contestant's final-round wager. A wager is set once
// per game; later attempts are rejected.
func (e *Engine) Wager(p *game.Player, amount int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount < 0 {
		return fmt.Errorf("negative wager %d", amount)
	}
	if p.HasWagered {
		return ErrWagerSet
	}
	p.Wager = amount
	p.HasWagered = true
	e.log.Info("wager placed", "player", p.Name, "amount", amount)
	return nil
}

// Answer records a contestant's free-text final-round answer.
func (e *Engine) Answer(p *game.Player, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p.FinalAnswer = text
	e.log.Info("final answer submitted", "player", p.Name)
}

// FinalNextSlide advances the final-round reveal. The first call
// snapshots the players in ascending score order and shows the
// final-answer overlay; each player then gets three stages (answer,
// wager plus judgement, resulting score) before the reveal moves to
// the next player. After the last player's score stage the game ends.
func (e *Engine) FinalNextSlide() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finalNextSlideLocked()
}

func (e *Engine) finalNextSlideLocked() {
	if e.over {
		return
	}
	if e.judgeRound == -1 {
		e.displays.SetFinalVisible(true)
		e.sorted = make([]*game.Player, len(e.players))
		copy(e.sorted, e.players)
		sort.SliceStable(e.sorted, func(i, j int) bool {
			return e.sorted[i].Score < e.sorted[j].Score
		})
	}

	if e.judgeStage == 2 {
		if e.judgeRound == len(e.sorted)-1 {
			e.endGameLocked()
			return
		}
		e.judgeStage = 0
		e.judgeRound++
		e.answering = e.sorted[e.judgeRound]
		e.log.Info("revealing final answer", "player", e.answering.Name)
	} else {
		e.judgeStage++
	}

	e.displays.SetInfoLevel(e.judgeStage)

	if e.judgeStage == 1 {
		e.keys.Deactivate(bindNextSlide)
		e.keys.Activate(bindCorrect)
		e.keys.Activate(bindIncorrect)
		e.displays.SetArrowHints(true)
		e.displays.SetSpaceHints(false)
	}
}

func (e *Engine) endGameLocked() {
	e.displays.SetFinalVisible(false)
	e.keys.Deactivate(bindNextSlide)
	e.over = true

	for _, p := range e.players {
		if e.winner == nil || p.Score > e.winner.Score {
			e.winner = p
		}
	}
	e.answering = e.winner
	if e.winner != nil {
		e.log.Info("game over", "winner", e.winner.Name, "score", e.winner.Score)
	}
	e.refreshPlayersLocked()
	e.saveLocked()
}

func (e *Engine) playerViewsLocked() []PlayerView {
	views := make([]PlayerView, 0, len(e.players))
	for _, p := range e.players {
		views = append(views, PlayerView{
			ID:    p.ID.String(),
			Name:  p.Name,
			Score: p.Score,
		})
	}
	return views
}

func (e *Engine) refreshPlayersLocked() {
	e.displays.RefreshPlayers(e.playerViewsLocked())
}

// saveLocked kicks off a best-effort background save of the durable
// subset. Never awaited; a failed save is logged and play continues.
func (e *Engine) saveLocked() {
	if e.saver == nil {
		return
	}
	snap := e.snapshotLocked()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.saver.Save(ctx, snap); err != nil {
			e.log.Error("snapshot save failed", "error", err)
		}
	}()
}

func (e *Engine) snapshotLocked() *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Meta:         e.meta,
		Boards:       e.boards,
		CurrentRound: e.round,
	}
	for _, p := range e.players {
		snap.Players = append(snap.Players, snapshot.PlayerState{
			ID:          p.ID,
			Name:        p.Name,
			Score:       p.Score,
			Wager:       p.Wager,
			HasWagered:  p.HasWagered,
			FinalAnswer: p.FinalAnswer,
		})
	}
	for pos := range e.completed {
		snap.Completed = append(snap.Completed, snapshot.CompletedQuestion{
			Round:    e.round,
			Position: pos,
		})
	}
	return snap
}

// Snapshot returns the current durable subset.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

type noopSound struct{}

func (noopSound) PlayFinalMusic() {}
func (noopSound) StopMusic()      {}
