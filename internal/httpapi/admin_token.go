package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jordanhubbard/modelhub/internal/apikey"
	"github.com/jordanhubbard/modelhub/internal/store"
)

// AdminTokenHolder provides thread-safe access to the admin token with
// persistence to the data directory. The token survives container restarts
// and can be rotated at runtime via the admin API or replaced on SIGHUP.
type AdminTokenHolder struct {
	mu         sync.RWMutex
	token      string
	hostAPIKey string // plaintext of the auto-provisioned host-local API key
	dbDSN      string // used to derive the data directory for persistence
}

// NewAdminTokenHolder creates a holder and resolves the initial token using
// the following precedence:
//
//  1. Explicit env/config value (operator-provided, source of truth)
//  2. Previously persisted token from the data directory
//  3. Newly generated random token
//
// The resolved token is always persisted so that future restarts without the
// env var pick up the same token.
func NewAdminTokenHolder(configToken, dbDSN string, logger *slog.Logger) (*AdminTokenHolder, error) {
	h := &AdminTokenHolder{dbDSN: dbDSN}

	switch {
	case configToken != "":
		h.token = configToken
	default:
		h.token = h.readPersisted()
	}

	if h.token == "" {
		tok, err := randomToken()
		if err != nil {
			return nil, err
		}
		h.token = tok
		logger.Warn("MODELHUB_ADMIN_TOKEN not set, auto-generated token (stored in the data directory)")
	}

	h.persist(logger)
	return h, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate admin token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Get returns the current admin token.
func (h *AdminTokenHolder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// ConstantTimeEqual returns true if the provided token matches the current
// admin token using constant-time comparison.
func (h *AdminTokenHolder) ConstantTimeEqual(provided string) bool {
	h.mu.RLock()
	current := h.token
	h.mu.RUnlock()
	if current == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(current)) == 1
}

// Rotate generates a new random token, persists it, and returns the new token.
func (h *AdminTokenHolder) Rotate(logger *slog.Logger) (string, error) {
	newToken, err := randomToken()
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	h.token = newToken
	h.mu.Unlock()

	h.persist(logger)
	return newToken, nil
}

// Replace sets an explicit token (e.g. from a config reload), persists it,
// and returns the old token.
func (h *AdminTokenHolder) Replace(newToken string, logger *slog.Logger) string {
	h.mu.Lock()
	old := h.token
	h.token = newToken
	h.mu.Unlock()

	h.persist(logger)
	return old
}

// Middleware rejects requests without "Authorization: Bearer <admin token>".
func (h *AdminTokenHolder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		tok, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || !h.ConstantTimeEqual(strings.TrimSpace(tok)) {
			jsonError(w, http.StatusUnauthorized, CodeUnauthorized, "admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// dataDir returns the directory derived from the DB DSN, or "" if not applicable.
func (h *AdminTokenHolder) dataDir() string {
	if strings.Contains(h.dbDSN, "://") {
		return ""
	}
	dsn := strings.TrimPrefix(h.dbDSN, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	if dsn == "" || dsn == ":memory:" {
		return ""
	}
	return filepath.Dir(dsn)
}

func (h *AdminTokenHolder) readPersisted() string {
	dir := h.dataDir()
	if dir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(dir, ".admin-token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (h *AdminTokenHolder) persist(logger *slog.Logger) {
	dir := h.dataDir()
	if dir == "" {
		return
	}
	h.mu.RLock()
	token := h.token
	hostKey := h.hostAPIKey
	h.mu.RUnlock()

	env := "MODELHUB_ADMIN_TOKEN=" + token + "\n"
	if hostKey != "" {
		env += "MODELHUBCTL_API_KEY=" + hostKey + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, "env"), []byte(env), 0600); err != nil {
		logger.Warn("failed to write state env file", slog.String("error", err.Error()))
	}
	if err := os.WriteFile(filepath.Join(dir, ".admin-token"), []byte(token+"\n"), 0600); err != nil {
		logger.Warn("failed to write admin token file", slog.String("error", err.Error()))
	}
}

// ProvisionHostAPIKey ensures a persistent enterprise key exists for tools
// on the host (modelhubctl). The plaintext lives in <dataDir>/.host-api-key
// and is exported in the env file as MODELHUBCTL_API_KEY.
func (h *AdminTokenHolder) ProvisionHostAPIKey(ctx context.Context, mgr *apikey.Manager, logger *slog.Logger) (string, error) {
	dir := h.dataDir()
	if dir == "" {
		return "", nil
	}
	keyFile := filepath.Join(dir, ".host-api-key")

	if data, err := os.ReadFile(keyFile); err == nil {
		plaintext := strings.TrimSpace(string(data))
		if plaintext != "" {
			if _, err := mgr.Verify(ctx, plaintext); err == nil {
				h.setHostKey(plaintext, logger)
				logger.Info("host API key loaded from disk")
				return plaintext, nil
			}
			logger.Warn("host API key on disk is no longer valid, issuing a new one")
		}
	}

	plaintext, _, err := mgr.Issue(ctx, "host-local", apikey.PlanEnterprise)
	if err != nil {
		return "", fmt.Errorf("provision host api key: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(plaintext+"\n"), 0600); err != nil {
		return "", fmt.Errorf("write host api key file: %w", err)
	}
	h.setHostKey(plaintext, logger)
	logger.Info("host API key provisioned", slog.String("key_file", keyFile))
	return plaintext, nil
}

func (h *AdminTokenHolder) setHostKey(plaintext string, logger *slog.Logger) {
	h.mu.Lock()
	h.hostAPIKey = plaintext
	h.mu.Unlock()
	h.persist(logger)
}

// AdminTokenRotateHandler handles POST /admin/v1/admin-token/rotate. The
// new token is returned once; the caller's old token stops working.
func AdminTokenRotateHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := d.AdminToken.Rotate(d.logger())
		if err != nil {
			writeError(w, r, d.logger(), err)
			return
		}
		if d.Store != nil {
			warnOnErr("audit", d.Store.LogAudit(r.Context(), store.AuditEntry{
				Timestamp: time.Now().UTC(),
				Action:    "admin_token.rotate",
				RequestID: middleware.GetReqID(r.Context()),
			}))
		}
		writeData(w, http.StatusOK, map[string]string{"admin_token": tok}, nil)
	}
}
