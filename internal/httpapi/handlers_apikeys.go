package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jordanhubbard/modelhub/internal/apikey"
	"github.com/jordanhubbard/modelhub/internal/catalog"
	"github.com/jordanhubbard/modelhub/internal/events"
	"github.com/jordanhubbard/modelhub/internal/store"
)

// APIKeysIssueHandler handles POST /admin/v1/apikeys. The plaintext key is
// returned once and never stored.
func APIKeysIssueHandler(d Dependencies) http.HandlerFunc {
	type issueReq struct {
		OwnerID string `json:"owner_id"`
		Plan    string `json:"plan"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req issueReq
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, r, d.logger(), &catalog.ValidationError{Field: "body", Message: "malformed JSON"})
			return
		}
		req.OwnerID = strings.TrimSpace(req.OwnerID)
		if req.OwnerID == "" {
			writeError(w, r, d.logger(), &catalog.ValidationError{Field: "owner_id", Message: "owner_id is required"})
			return
		}
		plan, err := apikey.ParsePlan(req.Plan)
		if err != nil {
			writeError(w, r, d.logger(), &catalog.ValidationError{Field: "plan", Message: err.Error()})
			return
		}

		plaintext, rec, err := d.APIKeys.Issue(r.Context(), req.OwnerID, plan)
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		d.audit(r, "apikey.issue", rec.ID, map[string]string{"owner_id": rec.OwnerID, "plan": rec.Plan})
		d.publish(r, events.Event{Type: events.EventAPIKeyIssued, KeyID: rec.ID})

		writeData(w, http.StatusCreated, map[string]any{
			"key":         plaintext,
			"id":          rec.ID,
			"key_prefix":  rec.KeyPrefix,
			"owner_id":    rec.OwnerID,
			"plan":        rec.Plan,
			"daily_limit": plan.DailyLimit(),
			"expires_at":  rec.ExpiresAt,
			"warning":     "This is the only time the full key will be shown. Store it securely.",
		}, nil)
	}
}

// APIKeysListHandler handles GET /admin/v1/apikeys. Hashes are never
// serialised.
func APIKeysListHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := d.APIKeys.List(r.Context())
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if keys == nil {
			keys = []store.APIKeyRecord{}
		}
		writeData(w, http.StatusOK, keys, nil)
	}
}

// APIKeysRevokeHandler handles DELETE /admin/v1/apikeys/{id}.
func APIKeysRevokeHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := d.APIKeys.Revoke(r.Context(), id); err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		d.audit(r, "apikey.revoke", id, nil)
		d.publish(r, events.Event{Type: events.EventAPIKeyRevoked, KeyID: id})
		writeData(w, http.StatusOK, map[string]any{"revoked": id}, nil)
	}
}

// APIKeysUsageHandler handles GET /admin/v1/apikeys/{id}/usage.
func APIKeysUsageHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := d.APIKeys.Usage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		writeData(w, http.StatusOK, u, nil)
	}
}
