package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/coinview/backend/internal/apperrors"
	"github.com/coinview/backend/internal/models"
	"github.com/coinview/backend/internal/services"
)

// DeviceCommandHandler serves the device command queue endpoints.
type DeviceCommandHandler struct {
	commands services.DeviceCommandService
}

func NewDeviceCommandHandler(commands services.DeviceCommandService) *DeviceCommandHandler {
	return &DeviceCommandHandler{commands: commands}
}

type dispatchCommandRequest struct {
	TargetDevice   string  `json:"target_device"`
	TargetDeviceID *string `json:"target_device_id"`
	Command        string  `json:"command"`
	Payload        *string `json:"payload"`
}

// HandleDispatch queues a command. POST /api/crypto/device-commands
func (h *DeviceCommandHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	var req dispatchCommandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := h.commands.Dispatch(r.Context(), user.ID, services.DispatchCommandInput{
		TargetDevice:   req.TargetDevice,
		TargetDeviceID: req.TargetDeviceID,
		Command:        req.Command,
		Payload:        req.Payload,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cmd)
}

type pollResponse struct {
	Commands []models.DeviceCommand `json:"commands"`
	PolledAt time.Time              `json:"polled_at"`
}

// HandlePoll drains pending commands. GET /api/crypto/device-commands/poll
func (h *DeviceCommandHandler) HandlePoll(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	targetDevice := r.URL.Query().Get("target_device")
	if targetDevice == "" {
		targetDevice = "desktop"
	}
	var targetDeviceID *string
	if v := r.URL.Query().Get("target_device_id"); v != "" {
		targetDeviceID = &v
	}
	cmds, err := h.commands.Poll(r.Context(), user.ID, targetDevice, targetDeviceID, queryInt(r, "limit", 10))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pollResponse{Commands: cmds, PolledAt: time.Now().UTC()})
}

type ackRequest struct {
	Status string `json:"status"`
}

// HandleAck resolves a delivered command.
// POST /api/crypto/device-commands/{id}/ack
func (h *DeviceCommandHandler) HandleAck(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, apperrors.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		writeError(w, apperrors.Validation("id", "must be a positive integer"))
		return
	}
	var req ackRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	cmd, err := h.commands.Acknowledge(r.Context(), user.ID, uint(id), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}
