package server

import (
	"net/http"
	"strings"

	"github.com/quizfire/quizfire/internal/engine"
)

type JoinRequest struct {
	Name string `json:"name"`
}

type JoinResponse struct {
	Token    string `json:"token"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

func handleJoin(eng *engine.Engine, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		player, err := eng.AddPlayer(req.Name)
		if err != nil {
			writeError(w, http.StatusConflict, "game is over")
			return
		}

		writeJSON(w, http.StatusOK, JoinResponse{
			Token:    hub.IssueToken(player),
			PlayerID: player.ID.String(),
			Name:     player.Name,
		})
	}
}
