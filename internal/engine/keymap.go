package engine

import "sync"

// KeyMap routes raw judge key events to named, independently
// activatable bindings. Several bindings may share one trigger key
// ("space" means different things in different phases); the engine
// deactivates the bindings of a finished phase before activating the
// next. A non-persistent binding deactivates itself as it fires,
// implementing one-shot "continue" affordances.
//
// This is the only gate between judge input and engine transitions:
// the engine never reads keys directly.
type KeyMap struct {
	mu       sync.Mutex
	bindings map[string]*keyBinding
}

type keyBinding struct {
	key        string
	fn         func()
	active     bool
	persistent bool
}

func NewKeyMap() *KeyMap {
	return &KeyMap{bindings: make(map[string]*keyBinding)}
}

// Bind registers a binding under id, inactive until Activate is called.
// Re-binding an existing id replaces it.
func (m *KeyMap) Bind(id, key string, fn func(), persistent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[id] = &keyBinding{key: key, fn: fn, persistent: persistent}
}

// Activate enables the named binding. Unknown ids are ignored.
func (m *KeyMap) Activate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bindings[id]; ok {
		b.active = true
	}
}

// Deactivate disables the named binding. Unknown ids are ignored.
func (m *KeyMap) Deactivate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bindings[id]; ok {
		b.active = false
	}
}

// Active reports whether the named binding is currently active.
func (m *KeyMap) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[id]
	return ok && b.active
}

// Dispatch invokes the handler of every active binding whose trigger
// key matches. Non-persistent bindings are deactivated before their
// handler runs, so a handler re-activating its own binding sticks.
// Matching is resolved first, then handlers run without the KeyMap
// lock held; handlers may freely call Activate and Deactivate.
func (m *KeyMap) Dispatch(key string) {
	m.mu.Lock()
	var fire []func()
	for _, b := range m.bindings {
		if b.active && b.key == key {
			if !b.persistent {
				b.active = false
			}
			fire = append(fire, b.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}
