package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mudlink/mudlink/internal/discord"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// adminAuth gates the admin endpoints on the X-Admin-Key header. A server
// without a configured key refuses rather than running open.
func (s *Server) adminAuth(w http.ResponseWriter, r *http.Request) bool {
	key := s.cfg.AdminKey()
	if key == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "admin key not configured"})
		return false
	}
	if r.Header.Get("X-Admin-Key") != key {
		slog.Warn("admin.rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return false
	}
	return true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service":  "mudlink",
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"sessions": s.sessions.Count(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.adminAuth(w, r) {
		return
	}
	infos := s.sessions.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(infos),
		"sessions": infos,
	})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	if !s.adminAuth(w, r) {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message required"})
		return
	}

	n := s.sessions.Broadcast(req.Message)
	slog.Info("admin.broadcast", "recipients", n)
	writeJSON(w, http.StatusOK, map[string]any{"sent": n})
}

// handleDiscordWebhook relays a message to a Discord webhook on behalf of the
// site backend. The endpoint is public; the webhook URL check, sanitization
// and the process-wide rate limit are the defense.
func (s *Server) handleDiscordWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}

	var req struct {
		WebhookURL string `json:"webhookUrl"`
		Message    string `json:"message"`
		Username   string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !discord.ValidURL(req.WebhookURL) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "not a discord webhook URL"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message required"})
		return
	}

	if err := s.webhooks.Send(req.WebhookURL, req.Message, req.Username); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
