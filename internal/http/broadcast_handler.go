package httpapi

import (
	"net/http"
	"strings"
	"time"

	"smart-industry/internal/broadcast"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// BroadcastHandler WebSocket 订阅与运维广播
type BroadcastHandler struct {
	manager  *broadcast.Manager
	opts     broadcast.ServeOptions
	token    string
	upgrader websocket.Upgrader
	logger   *zap.Logger

	now func() time.Time
}

func NewBroadcastHandler(manager *broadcast.Manager, opts broadcast.ServeOptions, token string, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		manager: manager,
		opts:    opts,
		token:   token,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
		now:    time.Now,
	}
}

// Subscribe GET /ws/{role}
func (h *BroadcastHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	role := strings.TrimSpace(r.PathValue("role"))
	if role == "" {
		writeError(w, http.StatusBadRequest, "role is required")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		h.logger.Debug("WebSocket upgrade failed", zap.String("role", role), zap.Error(err))
		return
	}

	if err := h.manager.Serve(r.Context(), ws, role, h.opts); err != nil {
		h.logger.Warn("WebSocket session ended with error", zap.String("role", role), zap.Error(err))
	}
}

type broadcastRequest struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	TargetRole string `json:"target_role"`
}

// Broadcast POST /broadcast 运维人员推送任意消息
func (h *BroadcastHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	if !tokenEqual(r.Header.Get("X-SENSOR-TOKEN"), h.token) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "Unauthorized"})
		return
	}

	var req broadcastRequest
	if err := readBodyJSON(r, 64<<10, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Type == "" {
		req.Type = "alert"
	}
	if req.Message == "" {
		req.Message = "No message provided"
	}

	msg := map[string]any{
		"type":      req.Type,
		"message":   req.Message,
		"timestamp": h.now().Format(time.RFC3339),
	}
	res, err := h.manager.Publish(r.Context(), msg, req.TargetRole)
	if err != nil {
		h.logger.Error("Failed to broadcast operator message", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sentTo := req.TargetRole
	if sentTo == "" {
		sentTo = "all"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "Broadcast sent",
		"sent_to":   sentTo,
		"delivered": res.Delivered,
	})
}
