package server

import (
	"errors"
	"net/http"

	"github.com/quizfire/quizfire/internal/engine"
	"github.com/quizfire/quizfire/internal/game"
)

type HostKeyRequest struct {
	Key string `json:"key"`
}

// handleHostKey feeds one raw judge keypress into the engine's key
// router. Keys with no active binding are a no-op, so this endpoint
// always succeeds; what a key means right now is the engine's business.
func handleHostKey(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HostKeyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Key == "" {
			writeError(w, http.StatusBadRequest, "key is required")
			return
		}

		eng.DispatchKey(req.Key)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type HostSelectRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func handleHostSelect(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HostSelectRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := eng.SelectQuestion(game.Position{Row: req.Row, Col: req.Col})
		switch {
		case errors.Is(err, engine.ErrQuestionOpen),
			errors.Is(err, engine.ErrQuestionDone),
			errors.Is(err, engine.ErrGameOver):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleGameState returns the current state for rendering. The active
// question's answer is visible only with a host session.
func handleGameState(eng *engine.Engine, auth *HostAuth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := eng.State()
		if state.Active != nil && !auth.Authenticated(r) {
			state.Active.Answer = ""
		}
		writeJSON(w, http.StatusOK, state)
	}
}
