package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"brainduel/internal/cache"
	"brainduel/internal/model"
	"brainduel/internal/repository"
	"brainduel/internal/transport/rest/middleware"
)

// UserHandler handles user profile endpoints
type UserHandler struct {
	users    repository.UserRepo
	presence cache.PresenceCache
}

// NewUserHandler creates a new user handler
func NewUserHandler(users repository.UserRepo, presence cache.PresenceCache) *UserHandler {
	return &UserHandler{users: users, presence: presence}
}

// ListOnline handles GET /v1/users/online — the dashboard's challenge list.
// The stored online flag is cross-checked against the presence heartbeat so a
// crashed client whose flag was never cleared drops off the list once its TTL
// expires.
func (h *UserHandler) ListOnline(w http.ResponseWriter, r *http.Request) {
	uid := middleware.GetUserID(r.Context())

	users, err := h.users.ListOnline(r.Context(), uid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	online := make([]*model.User, 0, len(users))
	for _, u := range users {
		if live, err := h.presence.IsOnline(r.Context(), u.ID); err == nil && !live {
			continue // stale flag, heartbeat expired
		}
		online = append(online, u)
	}

	writeJSON(w, http.StatusOK, online)
}

// Get handles GET /v1/users/{userId}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["userId"]

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if live, err := h.presence.IsOnline(r.Context(), id); err == nil {
		user.Online = live
	}

	writeJSON(w, http.StatusOK, user)
}
