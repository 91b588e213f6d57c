package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"smart-industry/internal/domain"
	"smart-industry/internal/repository"

	"go.uber.org/zap"
)

// WorkerHandler worker 档案与设备分配
type WorkerHandler struct {
	workers     repository.WorkersRepository
	assignments repository.DeviceAssignmentsRepository
	logger      *zap.Logger
}

func NewWorkerHandler(store repository.Store, logger *zap.Logger) *WorkerHandler {
	return &WorkerHandler{
		workers:     store,
		assignments: store,
		logger:      logger,
	}
}

type assignRequest struct {
	DeviceID string `json:"device_id"`
	UserID   string `json:"user_id"`
}

// AssignUser POST /assign_user（覆盖已有分配）
func (h *WorkerHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := readBodyJSON(r, 16<<10, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.UserID = strings.TrimSpace(req.UserID)
	if req.DeviceID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "device_id and user_id are required")
		return
	}
	if utf8.RuneCountInString(req.DeviceID) > domain.MaxIDLength || utf8.RuneCountInString(req.UserID) > domain.MaxIDLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("device_id and user_id must be at most %d characters", domain.MaxIDLength))
		return
	}

	if err := h.assignments.AssignDevice(r.Context(), req.DeviceID, req.UserID); err != nil {
		h.logger.Error("Failed to assign device",
			zap.String("device_id", req.DeviceID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to assign device")
		return
	}

	h.logger.Info("Device assigned",
		zap.String("device_id", req.DeviceID),
		zap.String("user_id", req.UserID),
	)
	writeJSON(w, http.StatusOK, map[string]any{"message": "User assigned successfully"})
}

// GetAssignedUser GET /get_assigned_user/{device_id}
// 未分配的设备返回设备 ID 本身
func (h *WorkerHandler) GetAssignedUser(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("device_id")

	workerID, err := h.assignments.GetAssignedWorker(r.Context(), deviceID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			h.logger.Error("Failed to load device assignment", zap.String("device_id", deviceID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load device assignment")
			return
		}
		workerID = deviceID
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": workerID})
}

// GetWorker GET /worker/{worker_id}
func (h *WorkerHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	workerID := r.PathValue("worker_id")

	profile, err := h.workers.GetWorker(r.Context(), workerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		h.logger.Error("Failed to load worker", zap.String("worker_id", workerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load worker")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ListWorkers GET /api/workers
func (h *WorkerHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.workers.ListWorkers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list workers", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list workers")
		return
	}
	writeJSON(w, http.StatusOK, workers)
}
