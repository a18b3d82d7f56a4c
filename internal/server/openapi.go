package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/quizfire/quizfire/internal/engine"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Quizfire API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Quizfire live trivia host.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/join")
	postJoin.SetSummary("Join the game")
	postJoin.SetDescription("Registers a contestant and returns their buzzer session token.")
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// GET /api/join/qr
	getQR, _ := r.NewOperationContext(http.MethodGet, "/api/join/qr")
	getQR.SetSummary("Join QR code")
	getQR.SetDescription("PNG QR code pointing contestant phones at the join page.")
	getQR.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("image/png"))
	_ = r.AddOperation(getQR)

	// GET /api/buzzer/ws
	getBuzzer, _ := r.NewOperationContext(http.MethodGet, "/api/buzzer/ws")
	getBuzzer.SetSummary("Buzzer websocket")
	getBuzzer.SetDescription("Upgrades to the contestant buzzer connection. Pass the session token as a query parameter.")
	getBuzzer.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	getBuzzer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getBuzzer)

	// GET /api/game/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/game/state")
	getState.SetSummary("Get game state")
	getState.SetDescription("Returns the board, scores, and active question. Answers require a host session.")
	getState.AddRespStructure(engine.StateView{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(getState)

	// GET /api/game/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/game/events")
	getEvents.SetSummary("Display event stream")
	getEvents.SetDescription("Server-Sent Events stream of engine-driven display updates.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/host/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/host/login")
	postLogin.SetSummary("Host login")
	postLogin.SetDescription("Authenticate with the host passcode. Sets host_session cookie.")
	postLogin.AddReqStructure(HostLoginRequest{})
	postLogin.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/host/key
	postKey, _ := r.NewOperationContext(http.MethodPost, "/api/host/key")
	postKey.SetSummary("Judge keypress")
	postKey.SetDescription("Feeds one raw judge key event into the engine's key router. Requires host_session cookie.")
	postKey.AddReqStructure(HostKeyRequest{})
	postKey.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postKey.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postKey)

	// POST /api/host/select
	postSelect, _ := r.NewOperationContext(http.MethodPost, "/api/host/select")
	postSelect.SetSummary("Select question")
	postSelect.SetDescription("Takes a question off the board and arms the open-responses affordance. Requires host_session cookie.")
	postSelect.AddReqStructure(HostSelectRequest{})
	postSelect.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postSelect.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postSelect.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postSelect)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
