package engine_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/quizfire/quizfire/internal/engine"
	"github.com/quizfire/quizfire/internal/game"
	"github.com/quizfire/quizfire/internal/snapshot"
)

// recorderDisplay captures every display call for assertions. Calls
// arrive from the test goroutine and the timer goroutine.
type recorderDisplay struct {
	mu            sync.Mutex
	lit           bool
	spaceHints    bool
	arrowHints    bool
	finalVisible  bool
	infoLevel     int
	flashes       int
	lightsRunning bool
	players       []engine.PlayerView
}

func (r *recorderDisplay) SetLit(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lit = on
}

func (r *recorderDisplay) SetSpaceHints(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spaceHints = on
}

func (r *recorderDisplay) SetArrowHints(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrowHints = on
}

func (r *recorderDisplay) SetInfoLevel(level int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infoLevel = level
}

func (r *recorderDisplay) SetFinalVisible(visible bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalVisible = visible
}

func (r *recorderDisplay) Flash() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flashes++
}

func (r *recorderDisplay) RunLights() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lightsRunning = true
}

func (r *recorderDisplay) StopLights() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lightsRunning = false
}

func (r *recorderDisplay) RefreshPlayers(players []engine.PlayerView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = players
}

func (r *recorderDisplay) flashCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flashes
}

func (r *recorderDisplay) level() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.infoLevel
}

func (r *recorderDisplay) finalShown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalVisible
}

type fakeBuzzers struct {
	mu         sync.Mutex
	activated  []string
	prompts    int
	wagerOpens int
}

func (f *fakeBuzzers) ActivateBuzzer(p *game.Player) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated = append(f.activated, p.Name)
}

func (f *fakeBuzzers) PromptAnswers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts++
}

func (f *fakeBuzzers) OpenWagers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wagerOpens++
}

func (f *fakeBuzzers) wagerOpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wagerOpens
}

type fakeSound struct {
	mu               sync.Mutex
	playing, stopped int
}

func (f *fakeSound) PlayFinalMusic() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing++
}

func (f *fakeSound) StopMusic() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGame(t *testing.T, clock clockwork.Clock) (*engine.Engine, *recorderDisplay, *fakeBuzzers, *fakeSound) {
	t.Helper()
	boards, meta := game.SeedDemoBoards()
	rec := &recorderDisplay{}
	sound := &fakeSound{}
	eng, err := engine.New(engine.Config{
		Boards:   boards,
		Meta:     meta,
		Logger:   testLogger(),
		Clock:    clock,
		Displays: engine.NewDisplays(rec),
		Sound:    sound,
	})
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	buzz := &fakeBuzzers{}
	eng.SetBuzzers(buzz)
	return eng, rec, buzz, sound
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func scoreOf(t *testing.T, eng *engine.Engine, name string) int {
	t.Helper()
	for _, p := range eng.State().Players {
		if p.Name == name {
			return p.Score
		}
	}
	t.Fatalf("player %q not found", name)
	return 0
}

func TestBuzzSingleWinnerPerWindow(t *testing.T) {
	eng, _, buzz, _ := newGame(t, clockwork.NewFakeClock())
	alice, _ := eng.AddPlayer("alice")
	bob, _ := eng.AddPlayer("bob")

	pos := game.Position{Row: 1, Col: 0}
	if err := eng.SelectQuestion(pos); err != nil {
		t.Fatalf("selecting question: %v", err)
	}

	// Nobody can buzz before responses open.
	if eng.Buzz(alice) {
		t.Fatal("buzz accepted before responses opened")
	}

	if err := eng.OpenResponses(); err != nil {
		t.Fatalf("opening responses: %v", err)
	}
	if !eng.Buzz(alice) {
		t.Fatal("first buzz rejected")
	}
	if eng.Buzz(bob) {
		t.Fatal("second buzz accepted while the floor is held")
	}

	buzz.mu.Lock()
	defer buzz.mu.Unlock()
	if len(buzz.activated) != 1 || buzz.activated[0] != "alice" {
		t.Errorf("activated buzzers = %v, want [alice]", buzz.activated)
	}
}

func TestIncorrectReopensAndBlocksPreviousAnswerer(t *testing.T) {
	eng, _, _, _ := newGame(t, clockwork.NewFakeClock())
	alice, _ := eng.AddPlayer("alice")
	bob, _ := eng.AddPlayer("bob")

	pos := game.Position{Row: 1, Col: 0} // 400 in round one
	if err := eng.SelectQuestion(pos); err != nil {
		t.Fatalf("selecting question: %v", err)
	}
	if err := eng.OpenResponses(); err != nil {
		t.Fatalf("opening responses: %v", err)
	}

	if !eng.Buzz(alice) {
		t.Fatal("alice's buzz rejected")
	}
	eng.IncorrectAnswer()

	if got := scoreOf(t, eng, "alice"); got != -400 {
		t.Errorf("alice's score = %d, want -400", got)
	}

	// Window is open again, but alice just lost the floor here.
	if eng.Buzz(alice) {
		t.Fatal("previous answerer's buzz accepted after reopen")
	}
	if !eng.Buzz(bob) {
		t.Fatal("bob's buzz rejected after reopen")
	}
	eng.CorrectAnswer()

	if got := scoreOf(t, eng, "bob"); got != 400 {
		t.Errorf("bob's score = %d, want 400", got)
	}

	// Correct answer retires the question.
	if err := eng.SelectQuestion(pos); !errors.Is(err, engine.ErrQuestionDone) {
		t.Errorf("re-selecting completed question: got %v, want ErrQuestionDone", err)
	}
}

func TestBuzzPausesCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	eng, _, _, _ := newGame(t, clock)
	alice, _ := eng.AddPlayer("alice")
	bob, _ := eng.AddPlayer("bob")

	if err := eng.SelectQuestion(game.Position{Row: 0, Col: 0}); err != nil {
		t.Fatalf("selecting question: %v", err)
	}
	if err := eng.OpenResponses(); err != nil {
		t.Fatalf("opening responses: %v", err)
	}

	clock.BlockUntil(1)
	clock.Advance(1 * time.Second)
	if !eng.Buzz(alice) {
		t.Fatal("buzz rejected")
	}

	// The countdown is frozen while alice holds the floor.
	clock.Advance(10 * time.Second)
	sv := eng.State()
	if sv.Active == nil {
		t.Fatal("active question vanished")
	}
	if got, want := sv.Active.Remaining, 3*time.Second; got != want {
		t.Errorf("remaining = %v, want %v", got, want)
	}

	// An incorrect ruling reopens with the preserved remaining time.
	eng.IncorrectAnswer()
	if !eng.Buzz(bob) {
		t.Fatal("bob's buzz rejected after reopen")
	}
}

func TestStumpedFlow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	eng, rec, _, _ := newGame(t, clock)
	alice, _ := eng.AddPlayer("alice")

	pos := game.Position{Row: 0, Col: 0}
	if err := eng.SelectQuestion(pos); err != nil {
		t.Fatalf("selecting question: %v", err)
	}
	eng.DispatchKey(engine.KeySpace) // open responses

	clock.BlockUntil(1)
	clock.Advance(engine.DefaultBuzzWindow)

	waitFor(t, "stumped flash", func() bool { return rec.flashCount() == 1 })

	if eng.Buzz(alice) {
		t.Fatal("buzz accepted after the window expired")
	}

	// Space now returns to the board and retires the question.
	eng.DispatchKey(engine.KeySpace)
	sv := eng.State()
	if sv.Active != nil {
		t.Error("active question not cleared")
	}
	if err := eng.SelectQuestion(pos); !errors.Is(err, engine.ErrQuestionDone) {
		t.Errorf("re-selecting stumped question: got %v, want ErrQuestionDone", err)
	}
	if got := scoreOf(t, eng, "alice"); got != 0 {
		t.Errorf("alice's score = %d, want 0", got)
	}
}

func TestSelectQuestionGuards(t *testing.T) {
	eng, _, _, _ := newGame(t, clockwork.NewFakeClock())

	if err := eng.SelectQuestion(game.Position{Row: 99, Col: 99}); err == nil {
		t.Error("selecting an out-of-bounds position succeeded")
	}

	if err := eng.SelectQuestion(game.Position{Row: 0, Col: 0}); err != nil {
		t.Fatalf("selecting question: %v", err)
	}
	if err := eng.SelectQuestion(game.Position{Row: 0, Col: 1}); !errors.Is(err, engine.ErrQuestionOpen) {
		t.Errorf("selecting while open: got %v, want ErrQuestionOpen", err)
	}
	// A bad position is reported as such even while a question is open.
	if err := eng.SelectQuestion(game.Position{Row: 99, Col: 99}); err == nil || errors.Is(err, engine.ErrQuestionOpen) {
		t.Errorf("out-of-bounds select while open: got %v, want a position error", err)
	}

	if err := eng.OpenResponses(); err != nil {
		t.Fatalf("opening responses: %v", err)
	}
	eng.Stumped()
	eng.BackToBoard()
	if err := eng.SelectQuestion(game.Position{Row: 0, Col: 1}); err != nil {
		t.Errorf("selecting after back-to-board: %v", err)
	}
}

// gateHandler parks the goroutine that logs a chosen message until the
// test releases it, which holds whatever lock that goroutine owns.
type gateHandler struct {
	msg     string
	entered chan struct{}
	release chan struct{}
}

func (g *gateHandler) Enabled(context.Context, slog.Level) bool { return true }
func (g *gateHandler) WithAttrs([]slog.Attr) slog.Handler       { return g }
func (g *gateHandler) WithGroup(string) slog.Handler            { return g }

func (g *gateHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == g.msg {
		g.entered <- struct{}{}
		<-g.release
	}
	return nil
}

func TestExpiryLosesToAcceptedBuzz(t *testing.T) {
	clock := clockwork.NewFakeClock()
	gate := &gateHandler{
		msg:     "buzz accepted",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	boards, meta := game.SeedDemoBoards()
	rec := &recorderDisplay{}
	eng, err := engine.New(engine.Config{
		Boards:   boards,
		Meta:     meta,
		Logger:   slog.New(gate),
		Clock:    clock,
		Displays: engine.NewDisplays(rec),
	})
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	alice, _ := eng.AddPlayer("alice")

	if err := eng.SelectQuestion(game.Position{Row: 1, Col: 0}); err != nil {
		t.Fatalf("selecting question: %v", err)
	}
	if err := eng.OpenResponses(); err != nil {
		t.Fatalf("opening responses: %v", err)
	}
	clock.BlockUntil(1)

	// The buzz takes the engine lock before it pauses the countdown.
	// While it is parked inside the lock, run the window out so the
	// expiry commits on the timer and queues up behind the engine lock.
	accepted := make(chan bool, 1)
	go func() { accepted <- eng.Buzz(alice) }()
	<-gate.entered
	clock.Advance(engine.DefaultBuzzWindow)
	close(gate.release)

	if !<-accepted {
		t.Fatal("buzz rejected")
	}
	time.Sleep(50 * time.Millisecond) // let the stale expiry drain

	// The stale expiry must not stump over the held floor.
	if got := rec.flashCount(); got != 0 {
		t.Errorf("flash count = %d, want 0", got)
	}
	eng.CorrectAnswer()
	if got := scoreOf(t, eng, "alice"); got != 400 {
		t.Errorf("alice's score = %d, want 400", got)
	}
}

func TestRestoreRejectsBadRound(t *testing.T) {
	boards, meta := game.SeedDemoBoards()
	for _, round := range []int{-1, 7} {
		_, err := engine.New(engine.Config{
			Restore: &snapshot.Snapshot{Meta: meta, Boards: boards, CurrentRound: round},
			Logger:  testLogger(),
		})
		if !errors.Is(err, engine.ErrBadSnapshot) {
			t.Errorf("CurrentRound=%d: got %v, want ErrBadSnapshot", round, err)
		}
	}
}

func TestRoundProgressionOpensWagers(t *testing.T) {
	eng, _, buzz, _ := newGame(t, clockwork.NewFakeClock())
	alice, _ := eng.AddPlayer("alice")

	for round := 0; round < 2; round++ {
		for col := 0; col < game.NormalCols; col++ {
			for row := 0; row < game.NormalRows; row++ {
				pos := game.Position{Row: row, Col: col}
				if err := eng.SelectQuestion(pos); err != nil {
					t.Fatalf("round %d (%d,%d): %v", round, row, col, err)
				}
				if err := eng.OpenResponses(); err != nil {
					t.Fatalf("round %d (%d,%d): %v", round, row, col, err)
				}
				if !eng.Buzz(alice) {
					t.Fatalf("round %d (%d,%d): buzz rejected", round, row, col)
				}
				eng.CorrectAnswer()
			}
		}
		// Board complete: space advances the round.
		eng.DispatchKey(engine.KeySpace)
	}

	sv := eng.State()
	if sv.Round != 2 || !sv.Final {
		t.Fatalf("after two rounds: round=%d final=%t, want round=2 final=true", sv.Round, sv.Final)
	}
	if got := buzz.wagerOpenCount(); got != 1 {
		t.Errorf("OpenWagers called %d times, want 1", got)
	}

	// Both money ladders, every category, answered correctly.
	want := 6 * (200 + 400 + 600 + 800 + 1000 + 400 + 800 + 1200 + 1600 + 2000)
	if got := scoreOf(t, eng, "alice"); got != want {
		t.Errorf("alice's score = %d, want %d", got, want)
	}
}

func TestWagerRules(t *testing.T) {
	eng, _, _, _ := newGame(t, clockwork.NewFakeClock())
	alice, _ := eng.AddPlayer("alice")

	if err := eng.Wager(alice, -100); err == nil {
		t.Error("negative wager accepted")
	}
	if err := eng.Wager(alice, 500); err != nil {
		t.Fatalf("placing wager: %v", err)
	}
	if err := eng.Wager(alice, 1000); !errors.Is(err, engine.ErrWagerSet) {
		t.Errorf("second wager: got %v, want ErrWagerSet", err)
	}
	if alice.Wager != 500 {
		t.Errorf("wager = %d, want 500", alice.Wager)
	}
}

// finalGame builds an engine restored into the final round with three
// contestants whose wagers are already placed.
func finalGame(t *testing.T) (*engine.Engine, *recorderDisplay, *fakeSound) {
	t.Helper()
	boards, meta := game.SeedDemoBoards()
	snap := &snapshot.Snapshot{
		Meta:         meta,
		Boards:       boards,
		CurrentRound: 2,
		Players: []snapshot.PlayerState{
			{ID: uuid.New(), Name: "al", Score: 1000, Wager: 1000, HasWagered: true, FinalAnswer: "what is wrong"},
			{ID: uuid.New(), Name: "bea", Score: 500, Wager: 500, HasWagered: true, FinalAnswer: "what is right"},
			{ID: uuid.New(), Name: "cat", Score: 1500, Wager: 100, HasWagered: true, FinalAnswer: "what is right"},
		},
	}
	rec := &recorderDisplay{}
	sound := &fakeSound{}
	eng, err := engine.New(engine.Config{
		Restore:  snap,
		Logger:   testLogger(),
		Clock:    clockwork.NewFakeClock(),
		Displays: engine.NewDisplays(rec),
		Sound:    sound,
	})
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return eng, rec, sound
}

func TestFinalReveal(t *testing.T) {
	eng, rec, sound := finalGame(t)

	if err := eng.OpenFinal(); err != nil {
		t.Fatalf("revealing final question: %v", err)
	}
	eng.DispatchKey(engine.KeySpace) // open answer collection

	sound.mu.Lock()
	playing := sound.playing
	sound.mu.Unlock()
	if playing != 1 {
		t.Errorf("PlayFinalMusic called %d times, want 1", playing)
	}

	eng.Stumped() // collection window closed

	sound.mu.Lock()
	stopped := sound.stopped
	sound.mu.Unlock()
	if stopped != 1 {
		t.Errorf("StopMusic called %d times, want 1", stopped)
	}

	// Reveal starts with the lowest score.
	eng.DispatchKey(engine.KeySpace)
	if !rec.finalShown() {
		t.Error("final overlay not shown")
	}
	if got := eng.State().Answering; got != "bea" {
		t.Fatalf("first revealed player = %q, want bea", got)
	}
	if got := rec.level(); got != 0 {
		t.Errorf("info level = %d, want 0", got)
	}

	// Stage 1 hands control to the judgement keys.
	eng.DispatchKey(engine.KeySpace)
	if got := rec.level(); got != 1 {
		t.Errorf("info level = %d, want 1", got)
	}
	eng.DispatchKey(engine.KeySpace) // ignored: next-slide is inactive during judgement
	if got := rec.level(); got != 1 {
		t.Errorf("info level after stray space = %d, want 1", got)
	}

	eng.DispatchKey(engine.KeyLeft) // bea correct: 500 + 500
	if got := scoreOf(t, eng, "bea"); got != 1000 {
		t.Errorf("bea's score = %d, want 1000", got)
	}
	if got := rec.level(); got != 2 {
		t.Errorf("info level = %d, want 2", got)
	}

	// The ruling is consumed: a stray judgement key changes nothing.
	eng.DispatchKey(engine.KeyLeft)
	if got := scoreOf(t, eng, "bea"); got != 1000 {
		t.Errorf("bea's score after stray ruling = %d, want 1000", got)
	}

	// Second player: al, ruled incorrect, loses the full wager.
	eng.DispatchKey(engine.KeySpace)
	if got := eng.State().Answering; got != "al" {
		t.Fatalf("second revealed player = %q, want al", got)
	}
	eng.DispatchKey(engine.KeySpace)
	eng.DispatchKey(engine.KeyRight)
	if got := scoreOf(t, eng, "al"); got != 0 {
		t.Errorf("al's score = %d, want 0", got)
	}

	// Third player: cat, ruled correct.
	eng.DispatchKey(engine.KeySpace)
	if got := eng.State().Answering; got != "cat" {
		t.Fatalf("third revealed player = %q, want cat", got)
	}
	eng.DispatchKey(engine.KeySpace)
	eng.DispatchKey(engine.KeyLeft)
	if got := scoreOf(t, eng, "cat"); got != 1600 {
		t.Errorf("cat's score = %d, want 1600", got)
	}

	// One more space past the last score ends the game.
	eng.DispatchKey(engine.KeySpace)
	sv := eng.State()
	if !sv.Over {
		t.Fatal("game not over after the last reveal")
	}
	if sv.Winner != "cat" {
		t.Errorf("winner = %q, want cat", sv.Winner)
	}
	if rec.finalShown() {
		t.Error("final overlay still shown after the game ended")
	}

	// The state machine is terminal now.
	if _, err := eng.AddPlayer("dave"); !errors.Is(err, engine.ErrGameOver) {
		t.Errorf("AddPlayer after game over: got %v, want ErrGameOver", err)
	}
	eng.DispatchKey(engine.KeySpace)
	if got := eng.State().Winner; got != "cat" {
		t.Errorf("winner changed after extra input: %q", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	eng, _, _, _ := newGame(t, clockwork.NewFakeClock())
	alice, _ := eng.AddPlayer("alice")

	pos := game.Position{Row: 2, Col: 3}
	if err := eng.SelectQuestion(pos); err != nil {
		t.Fatalf("selecting question: %v", err)
	}
	if err := eng.OpenResponses(); err != nil {
		t.Fatalf("opening responses: %v", err)
	}
	if !eng.Buzz(alice) {
		t.Fatal("buzz rejected")
	}
	eng.CorrectAnswer()

	snap := eng.Snapshot()

	restored, err := engine.New(engine.Config{
		Restore:  snap,
		Logger:   testLogger(),
		Clock:    clockwork.NewFakeClock(),
		Displays: engine.NewDisplays(),
	})
	if err != nil {
		t.Fatalf("restoring engine: %v", err)
	}

	p, ok := restored.PlayerByID(alice.ID)
	if !ok {
		t.Fatal("restored engine lost the player")
	}
	if p.Score != alice.Score {
		t.Errorf("restored score = %d, want %d", p.Score, alice.Score)
	}
	if err := restored.SelectQuestion(pos); !errors.Is(err, engine.ErrQuestionDone) {
		t.Errorf("completed question playable after restore: got %v, want ErrQuestionDone", err)
	}
	if err := restored.SelectQuestion(game.Position{Row: 0, Col: 0}); err != nil {
		t.Errorf("fresh question not playable after restore: %v", err)
	}
}
