package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-state/mesh-state-server/internal/config"
	"github.com/mesh-state/mesh-state-server/internal/models"
	"github.com/mesh-state/mesh-state-server/internal/session"
	"github.com/mesh-state/mesh-state-server/internal/state"
	"github.com/mesh-state/mesh-state-server/pkg/crypto"
)

func newTestServer(t *testing.T) (*RESTServer, *session.Registry) {
	t.Helper()

	hash, err := crypto.HashPassword("secret")
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Name: "mesh-state-server", Version: "test"},
		JWT:    config.JWTConfig{Secret: "test-secret", AccessTokenTTL: time.Hour},
		Admin:  config.AdminConfig{Username: "admin", PasswordHash: hash},
	}

	registry := session.NewRegistry()
	return NewRESTServer(cfg, registry), registry
}

func login(t *testing.T, s *RESTServer) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "secret"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func doRequest(s *RESTServer, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleLogin(t *testing.T) {
	s, _ := newTestServer(t)
	token := login(t, s)
	assert.NotEmpty(t, token)
}

func TestHandleLoginBadCredentials(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	rec := doRequest(s, http.MethodPost, "/api/v1/auth/login", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/devices/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/devices/", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleListDevices(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)

	sess := registry.GetOrCreate(1)
	sess.Device.SetMyNodeNum(100)
	sess.Nodes.AddNode(models.Node{Num: 200})
	registry.GetOrCreate(2)

	rec := doRequest(s, http.MethodGet, "/api/v1/devices/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Devices []struct {
			ID        models.DeviceID `json:"id"`
			MyNodeNum models.NodeNum  `json:"myNodeNum"`
			NodeCount int             `json:"nodeCount"`
		} `json:"devices"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, models.DeviceID(1), resp.Devices[0].ID)
	assert.Equal(t, models.NodeNum(100), resp.Devices[0].MyNodeNum)
	assert.Equal(t, 1, resp.Devices[0].NodeCount)
}

func TestHandleGetDeviceStateUnknownDevice(t *testing.T) {
	s, _ := newTestServer(t)
	token := login(t, s)

	rec := doRequest(s, http.MethodGet, "/api/v1/devices/99/", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetNode(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)

	sess := registry.GetOrCreate(1)
	sess.Nodes.AddUser(200, models.User{LongName: "Alice"})

	rec := doRequest(s, http.MethodGet, "/api/v1/devices/1/nodes/200", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var node models.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &node))
	require.NotNil(t, node.User)
	assert.Equal(t, "Alice", node.User.LongName)

	rec = doRequest(s, http.MethodGet, "/api/v1/devices/1/nodes/999", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleInjectNodeMerges(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)

	sess := registry.GetOrCreate(1)
	sess.Nodes.AddPosition(200, models.Position{LatitudeI: 123})

	body, _ := json.Marshal(map[string]interface{}{
		"num":      200,
		"longName": "Alice",
	})
	rec := doRequest(s, http.MethodPost, "/api/v1/devices/1/nodes/", token, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Injection merges like any other node update: the position survives.
	node, ok := sess.Nodes.Node(200)
	require.True(t, ok)
	require.NotNil(t, node.User)
	require.NotNil(t, node.Position)
	assert.Equal(t, "Alice", node.User.LongName)
	assert.Equal(t, int32(123), node.Position.LatitudeI)
}

func TestHandleInjectNodeValidation(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)
	registry.GetOrCreate(1)

	body, _ := json.Marshal(map[string]interface{}{
		"num":       200,
		"shortName": "toolong",
	})
	rec := doRequest(s, http.MethodPost, "/api/v1/devices/1/nodes/", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListMessagesPagination(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)

	sess := registry.GetOrCreate(1)
	for i := uint32(1); i <= 5; i++ {
		sess.Messages.Save(models.Message{ID: i, Text: fmt.Sprintf("msg %d", i)})
	}

	rec := doRequest(s, http.MethodGet, "/api/v1/devices/1/messages/?limit=2&offset=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []models.Message `json:"messages"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.Total)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, uint32(2), resp.Messages[0].ID)
}

func TestHandleListMessagesNegativeBounds(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)

	sess := registry.GetOrCreate(1)
	for i := uint32(1); i <= 3; i++ {
		sess.Messages.Save(models.Message{ID: i})
	}

	for _, query := range []string{"?offset=-5", "?limit=-1", "?limit=-1&offset=-5"} {
		rec := doRequest(s, http.MethodGet, "/api/v1/devices/1/messages/"+query, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, query)

		var resp struct {
			Messages []models.Message `json:"messages"`
			Total    int              `json:"total"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), query)
		assert.Equal(t, 3, resp.Total, query)
		assert.Len(t, resp.Messages, 3, query)
	}
}

func TestHandleMarkRead(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)

	sess := registry.GetOrCreate(1)
	sess.Messages.IncrementUnread(state.DirectConversation(200))

	body, _ := json.Marshal(map[string]interface{}{"type": "direct", "id": 200})
	rec := doRequest(s, http.MethodPost, "/api/v1/devices/1/messages/read", token, body)
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 0, sess.Messages.Unread(state.DirectConversation(200)))
}

func TestHandleMarkReadInvalidType(t *testing.T) {
	s, registry := newTestServer(t)
	token := login(t, s)
	registry.GetOrCreate(1)

	body, _ := json.Marshal(map[string]interface{}{"type": "bogus", "id": 200})
	rec := doRequest(s, http.MethodPost, "/api/v1/devices/1/messages/read", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
