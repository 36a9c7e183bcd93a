package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"brainduel/internal/model"
	"brainduel/internal/service"
	"brainduel/internal/transport/rest/middleware"
)

// MatchHandler handles match lifecycle and gameplay endpoints
type MatchHandler struct {
	matchSvc *service.MatchService
	roundSvc *service.RoundService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchSvc *service.MatchService, roundSvc *service.RoundService) *MatchHandler {
	return &MatchHandler{
		matchSvc: matchSvc,
		roundSvc: roundSvc,
	}
}

// CreateMatchRequest is the request body for creating a match
type CreateMatchRequest struct {
	OpponentID     string `json:"opponentId,omitempty"`
	NumberOfRounds int    `json:"numberOfRounds,omitempty"`
}

// Create handles POST /v1/matches
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())

	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	match, err := h.matchSvc.Create(r.Context(), uid, req.OpponentID, req.NumberOfRounds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, match)
}

// Get handles GET /v1/matches/{matchId}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	match, err := h.matchSvc.Get(r.Context(), matchID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, service.MatchState{
		Match:       match,
		Destination: h.matchSvc.RouteFor(match, uid),
		Round:       match.CurrentRound,
	})
}

// ListOpen handles GET /v1/matches/open — challenges waiting for the caller.
func (h *MatchHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())

	matches, err := h.matchSvc.ListOpenFor(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, matches)
}

// Join handles POST /v1/matches/{matchId}/join
func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	match, err := h.matchSvc.Join(r.Context(), matchID, uid)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, match)
}

// SetRoundsRequest is the request body for changing match length
type SetRoundsRequest struct {
	NumberOfRounds int `json:"numberOfRounds"`
}

// SetRounds handles PUT /v1/matches/{matchId}/rounds
func (h *MatchHandler) SetRounds(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	var req SetRoundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.matchSvc.SetRounds(r.Context(), matchID, uid, req.NumberOfRounds); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"numberOfRounds": req.NumberOfRounds})
}

// Start handles POST /v1/matches/{matchId}/start
func (h *MatchHandler) Start(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	if err := h.matchSvc.Start(r.Context(), matchID, uid); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusCategorySelect)})
}

// SelectCategoryRequest is the request body for picking a round's category
type SelectCategoryRequest struct {
	Category string `json:"category"`
}

// SelectCategory handles POST /v1/matches/{matchId}/category
func (h *MatchHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	var req SelectCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.matchSvc.SelectCategory(r.Context(), matchID, uid, req.Category); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(model.StatusInProgress)})
}

// SubmitAnswerRequest is the request body for answering a question
type SubmitAnswerRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

// SubmitAnswer handles POST /v1/matches/{matchId}/answers
func (h *MatchHandler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.roundSvc.SubmitAnswer(r.Context(), matchID, uid, req.QuestionID, req.Answer); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"recorded": true})
}

// RetryQuestions handles POST /v1/matches/{matchId}/questions/retry
func (h *MatchHandler) RetryQuestions(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	if err := h.roundSvc.RetryQuestions(r.Context(), matchID, uid); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"retrying": true})
}

// NextRound handles POST /v1/matches/{matchId}/next
func (h *MatchHandler) NextRound(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]
	uid := middleware.GetUserID(r.Context())

	if err := h.matchSvc.NextRound(r.Context(), matchID, uid); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// writeServiceError maps service sentinel errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotCreator),
		errors.Is(err, service.ErrNotYourTurn),
		errors.Is(err, service.ErrNotAPlayer):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrMatchFull),
		errors.Is(err, service.ErrWrongStatus),
		errors.Is(err, service.ErrRoundsLocked),
		errors.Is(err, service.ErrRoundNotReady),
		errors.Is(err, service.ErrRoundComplete),
		errors.Is(err, service.ErrUnknownQuestion),
		errors.Is(err, service.ErrInvalidAnswer),
		errors.Is(err, service.ErrQuestionsPresent),
		errors.Is(err, service.ErrMissingCategory):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
