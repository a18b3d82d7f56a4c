package engine

import "sync"

// PlayerView is the read-only scoreboard row pushed to displays.
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Display is a view the engine pushes UI state to: the host monitor,
// the audience monitor, a web scoreboard. The engine only writes; it
// never reads state back through a Display.
type Display interface {
	// SetLit lights or dims the board border (responses open).
	SetLit(on bool)
	// SetSpaceHints shows or hides the "press space to continue" hint.
	SetSpaceHints(on bool)
	// SetArrowHints shows or hides the judgement-key hints.
	SetArrowHints(on bool)
	// SetInfoLevel sets the final-round reveal depth (0 answer, 1 wager, 2 score).
	SetInfoLevel(level int)
	// SetFinalVisible shows or hides the final-answer overlay.
	SetFinalVisible(visible bool)
	// Flash draws attention to the border when time expires.
	Flash()
	// RunLights starts the answering-player light sweep.
	RunLights()
	// StopLights stops the light sweep.
	StopLights()
	// RefreshPlayers replaces the scoreboard contents.
	RefreshPlayers(players []PlayerView)
}

// Displays fans each call out to every registered view, so one logical
// UI update reaches any number of physical displays. It is itself a
// Display. Views may be registered at any time; there is no removal.
type Displays struct {
	mu    sync.RWMutex
	views []Display
}

func NewDisplays(views ...Display) *Displays {
	return &Displays{views: views}
}

// Register adds a view to the fan-out.
func (d *Displays) Register(v Display) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.views = append(d.views, v)
}

func (d *Displays) each(fn func(Display)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, v := range d.views {
		fn(v)
	}
}

func (d *Displays) SetLit(on bool) {
	d.each(func(v Display) { v.SetLit(on) })
}
func (d *Displays) SetSpaceHints(on bool) {
	d.each(func(v Display) { v.SetSpaceHints(on) })
}
func (d *Displays) SetArrowHints(on bool) {
	d.each(func(v Display) { v.SetArrowHints(on) })
}
func (d *Displays) SetInfoLevel(level int) {
	d.each(func(v Display) { v.SetInfoLevel(level) })
}
func (d *Displays) SetFinalVisible(visible bool) {
	d.each(func(v Display) { v.SetFinalVisible(visible) })
}
func (d *Displays) Flash()      { d.each(func(v Display) { v.Flash() }) }
func (d *Displays) RunLights()  { d.each(func(v Display) { v.RunLights() }) }
func (d *Displays) StopLights() { d.each(func(v Display) { v.StopLights() }) }
func (d *Displays) RefreshPlayers(players []PlayerView) {
	d.each(func(v Display) { v.RefreshPlayers(players) })
}

var _ Display = (*Displays)(nil)
