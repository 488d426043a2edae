package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/tidewater/subledger/internal/store"
)

type ProfileHandler struct {
	users  *store.UserStore
	logger *slog.Logger
}

func NewProfileHandler(users *store.UserStore, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{users: users, logger: logger}
}

// Get returns the authed user's profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Update overwrites the user's display fields. Email is owned by the
// identity provider and cannot be changed here. An absent key keeps the
// stored value; an explicit JSON null clears the field.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		ImageURL  *string `json:"image_url"`
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &keys); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if _, ok := keys["first_name"]; !ok {
		req.FirstName = user.FirstName
	}
	if _, ok := keys["last_name"]; !ok {
		req.LastName = user.LastName
	}
	if _, ok := keys["image_url"]; !ok {
		req.ImageURL = user.ImageURL
	}

	if err := h.users.UpdateProfile(store.UserParams{
		ClerkID:   user.ClerkID,
		Email:     user.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ImageURL:  req.ImageURL,
	}); err != nil {
		h.logger.Error("update profile", "user_id", user.ID, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	updated, err := h.users.GetByID(user.ID)
	if err != nil || updated == nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
