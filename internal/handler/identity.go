package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidewater/subledger/internal/store"
)

// svixTolerance bounds how stale a signed webhook timestamp may be.
const svixTolerance = 5 * time.Minute

// IdentityHandler ingests user lifecycle events pushed by the identity
// provider. It is the only writer of user rows other than the stripe customer
// id stamp at checkout time.
type IdentityHandler struct {
	users  *store.UserStore
	secret string
	logger *slog.Logger
	now    func() time.Time
}

func NewIdentityHandler(users *store.UserStore, secret string, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{
		users:  users,
		secret: secret,
		logger: logger,
		now:    time.Now,
	}
}

type identityEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		ImageURL  *string `json:"image_url"`
	} `json:"data"`
}

func (e *identityEvent) primaryEmail() string {
	if len(e.Data.EmailAddresses) == 0 {
		return ""
	}
	return e.Data.EmailAddresses[0].EmailAddress
}

// HandleIdentityWebhook verifies the svix-style signature and applies the
// user event. Verification fails closed: no secret, no processing.
func (h *IdentityHandler) HandleIdentityWebhook(w http.ResponseWriter, r *http.Request) {
	if h.secret == "" {
		h.logger.Error("identity webhook secret not configured")
		http.Error(w, "webhook secret not configured", http.StatusInternalServerError)
		return
	}

	msgID := r.Header.Get("svix-id")
	msgTimestamp := r.Header.Get("svix-timestamp")
	msgSignature := r.Header.Get("svix-signature")
	if msgID == "" || msgTimestamp == "" || msgSignature == "" {
		http.Error(w, "missing signature headers", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if err := verifySvixSignature(h.secret, msgID, msgTimestamp, msgSignature, body, h.now()); err != nil {
		h.logger.Warn("identity webhook verification failed", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event identityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch event.Type {
	case "user.created":
		h.handleUserCreated(w, event)
	case "user.updated":
		h.handleUserUpdated(w, event)
	case "user.deleted":
		h.handleUserDeleted(w, event)
	default:
		h.logger.Debug("ignoring identity event", "type", event.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *IdentityHandler) handleUserCreated(w http.ResponseWriter, event identityEvent) {
	email := event.primaryEmail()
	if email == "" {
		http.Error(w, "missing email address", http.StatusBadRequest)
		return
	}

	// Redelivered create events must not violate the clerk_id uniqueness.
	existing, err := h.users.GetByClerkID(event.Data.ID)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if _, err := h.users.Create(store.UserParams{
		ClerkID:   event.Data.ID,
		Email:     email,
		FirstName: event.Data.FirstName,
		LastName:  event.Data.LastName,
		ImageURL:  event.Data.ImageURL,
	}); err != nil {
		h.logger.Error("create user", "clerk_id", event.Data.ID, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("user created", "clerk_id", event.Data.ID)
	w.WriteHeader(http.StatusOK)
}

func (h *IdentityHandler) handleUserUpdated(w http.ResponseWriter, event identityEvent) {
	email := event.primaryEmail()
	if email == "" {
		http.Error(w, "missing email address", http.StatusBadRequest)
		return
	}

	params := store.UserParams{
		ClerkID:   event.Data.ID,
		Email:     email,
		FirstName: event.Data.FirstName,
		LastName:  event.Data.LastName,
		ImageURL:  event.Data.ImageURL,
	}

	existing, err := h.users.GetByClerkID(event.Data.ID)
	if err != nil {
		h.logger.Error("lookup user", "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		// An update for a user we never saw; treat as create.
		if _, err := h.users.Create(params); err != nil {
			h.logger.Error("create user on update", "clerk_id", event.Data.ID, "error", err)
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
	} else if err := h.users.UpdateProfile(params); err != nil {
		h.logger.Error("update user", "clerk_id", event.Data.ID, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("user updated", "clerk_id", event.Data.ID)
	w.WriteHeader(http.StatusOK)
}

func (h *IdentityHandler) handleUserDeleted(w http.ResponseWriter, event identityEvent) {
	if err := h.users.DeleteByClerkID(event.Data.ID); err != nil {
		h.logger.Error("delete user", "clerk_id", event.Data.ID, "error", err)
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	h.logger.Info("user deleted", "clerk_id", event.Data.ID)
	w.WriteHeader(http.StatusOK)
}

// verifySvixSignature checks an svix-style HMAC-SHA256 signature over
// "id.timestamp.body". The signature header may carry several space-separated
// "v1,<base64>" candidates; any match passes.
func verifySvixSignature(secret, msgID, msgTimestamp, sigHeader string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(msgTimestamp, 10, 64)
	if err != nil {
		return errInvalidTimestamp
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > svixTolerance || age < -svixTolerance {
		return errStaleTimestamp
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(secret, "whsec_"))
	if err != nil {
		return errBadSecret
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msgID))
	mac.Write([]byte("."))
	mac.Write([]byte(msgTimestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(sigHeader) {
		version, sig, ok := strings.Cut(candidate, ",")
		if !ok || version != "v1" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return errNoMatchingSignature
}

var (
	errInvalidTimestamp    = &verifyError{"invalid timestamp"}
	errStaleTimestamp      = &verifyError{"timestamp outside tolerance"}
	errBadSecret           = &verifyError{"malformed webhook secret"}
	errNoMatchingSignature = &verifyError{"no matching signature"}
)

type verifyError struct{ msg string }

func (e *verifyError) Error() string { return e.msg }
