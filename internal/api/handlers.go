package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/mesh-state/mesh-state-server/internal/models"
	"github.com/mesh-state/mesh-state-server/internal/session"
	"github.com/mesh-state/mesh-state-server/internal/state"
)

// ========== Auth handlers ==========

// HandleLogin handles the admin login
func (s *RESTServer) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	admin := s.config.Admin
	if req.Username != admin.Username || !s.auth.VerifyPassword(req.Password, admin.PasswordHash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.auth.GenerateToken(req.Username)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"expires_in":   int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":   "Bearer",
	})
}

// ========== Device handlers ==========

// HandleListDevices lists known devices with a state summary
func (s *RESTServer) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	type deviceSummary struct {
		ID           models.DeviceID     `json:"id"`
		Status       models.DeviceStatus `json:"status"`
		MyNodeNum    models.NodeNum      `json:"myNodeNum"`
		NodeCount    int                 `json:"nodeCount"`
		MessageCount int                 `json:"messageCount"`
	}

	ids := s.registry.IDs()
	devices := make([]deviceSummary, 0, len(ids))
	for _, id := range ids {
		sess, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		devices = append(devices, deviceSummary{
			ID:           id,
			Status:       sess.Device.Status(),
			MyNodeNum:    sess.Device.MyNodeNum(),
			NodeCount:    sess.Nodes.Len(),
			MessageCount: sess.Messages.Len(),
		})
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"total":   len(devices),
	})
}

// HandleGetDeviceState returns the full device state snapshot
func (s *RESTServer) HandleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deviceSession(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, sess.Device.Snapshot())
}

// ========== Node handlers ==========

// HandleListNodes lists the node registry of a device
func (s *RESTServer) HandleListNodes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deviceSession(w, r)
	if !ok {
		return
	}

	nodes := sess.Nodes.Nodes()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"nodes": nodes,
		"total": len(nodes),
	})
}

// HandleGetNode returns one node record
func (s *RESTServer) HandleGetNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deviceSession(w, r)
	if !ok {
		return
	}

	num, err := strconv.ParseUint(chi.URLParam(r, "num"), 10, 32)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid node number")
		return
	}

	node, ok := sess.Nodes.Node(models.NodeNum(num))
	if !ok {
		s.respondError(w, http.StatusNotFound, "node not found")
		return
	}

	s.respondJSON(w, http.StatusOK, node)
}

// HandleInjectNode manually merges a node record. The merge follows the
// same rules as dispatcher-applied node info: present fields update, absent
// fields never erase.
func (s *RESTServer) HandleInjectNode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deviceSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Num        uint32 `json:"num" validate:"required"`
		ID         string `json:"id"`
		LongName   string `json:"longName" validate:"max=40"`
		ShortName  string `json:"shortName" validate:"max=5"`
		HWModel    int32  `json:"hwModel"`
		LatitudeI  int32  `json:"latitudeI"`
		LongitudeI int32  `json:"longitudeI"`
		Altitude   int32  `json:"altitude"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	node := models.Node{Num: models.NodeNum(req.Num)}
	if req.ID != "" || req.LongName != "" || req.ShortName != "" {
		node.User = &models.User{
			ID:        req.ID,
			LongName:  req.LongName,
			ShortName: req.ShortName,
			HWModel:   req.HWModel,
		}
	}
	if req.LatitudeI != 0 || req.LongitudeI != 0 {
		node.Position = &models.Position{
			LatitudeI:  req.LatitudeI,
			LongitudeI: req.LongitudeI,
			Altitude:   req.Altitude,
		}
	}

	sess.Nodes.AddNode(node)

	log.Info().
		Uint32("num", req.Num).
		Int64("device", int64(sess.Device.ID())).
		Msg("Node injected manually")

	merged, _ := sess.Nodes.Node(models.NodeNum(req.Num))
	s.respondJSON(w, http.StatusCreated, merged)
}

// ========== Message handlers ==========

// HandleListMessages lists messages in arrival order
func (s *RESTServer) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deviceSession(w, r)
	if !ok {
		return
	}

	// Negative or missing bounds fall back to sane values; they must never
	// reach the slice expression below.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	messages := sess.Messages.Messages()
	total := len(messages)

	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	messages = messages[offset:end]

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"total":    total,
	})
}

// HandleListUnread lists non-zero unread counters
func (s *RESTServer) HandleListUnread(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deviceSession(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"unread": sess.Messages.UnreadCounts(),
	})
}

// HandleMarkRead resets the unread counter of one conversation
func (s *RESTServer) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.deviceSession(w, r)
	if !ok {
		return
	}

	var req struct {
		Type models.MessageType `json:"type" validate:"required"`
		ID   uint32             `json:"id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Type != models.MessageTypeDirect && req.Type != models.MessageTypeBroadcast {
		s.respondError(w, http.StatusBadRequest, "invalid conversation type")
		return
	}

	sess.Messages.MarkRead(state.ConversationKey{Type: req.Type, ID: req.ID})

	w.WriteHeader(http.StatusNoContent)
}

// ========== Helper methods ==========

// HandleHealth health check
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now(),
	})
}

// HandleRoot root handler
func (s *RESTServer) HandleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Mesh State Server",
		"version": s.config.Server.Version,
		"health":  "/api/v1/health",
	})
}

// deviceSession resolves the device_id URL param to an existing session.
func (s *RESTServer) deviceSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "device_id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return nil, false
	}

	sess, ok := s.registry.Get(models.DeviceID(id))
	if !ok {
		s.respondError(w, http.StatusNotFound, "device not found")
		return nil, false
	}

	return sess, true
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
