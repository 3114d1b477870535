package httpapi

import "net/http"

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady requires a reachable journal and a live bridge session.
func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if r.deps.Journal != nil {
		if err := r.deps.Journal.Ping(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
			return
		}
	}
	if r.deps.Transport != nil && !r.deps.Transport.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": "bridge not connected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleHeartbeat(w http.ResponseWriter, req *http.Request) {
	if r.deps.Heartbeat == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "heartbeat is disabled",
		})
		return
	}
	snapshot := r.deps.Heartbeat.Snapshot(r.deps.HeartbeatStaleAfter)
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	payload := map[string]any{
		"name":        "chat-runtime",
		"version":     r.deps.Version,
		"environment": r.deps.Config.Environment,
		"prefix":      r.deps.Config.Prefix,
		"auto_read":   r.deps.Config.AutoRead,
		"presence":    r.deps.Config.PresenceMode,
		"anti_delete": r.deps.Config.AntiDelete,
	}
	if r.deps.Transport != nil {
		payload["connected"] = r.deps.Transport.Connected()
		payload["self_jid"] = r.deps.Transport.SelfJID()
	}
	writeJSON(w, http.StatusOK, payload)
}
