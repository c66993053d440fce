package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominica-news/feedback/pkg/config"
)

func newTestServer(t *testing.T, jwtSecret string) *Server {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Auth.JWTSecret = jwtSecret

	// No repo or cache: the server runs in degraded mode, which is
	// exactly what handler tests need
	return NewServer(cfg, nil, nil, nil, nil)
}

func postReport(t *testing.T, router http.Handler, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/errors/report", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestServer_HandleReport(t *testing.T) {
	router := newTestServer(t, "").Routes()

	w := postReport(t, router, map[string]interface{}{
		"message":   "save failed",
		"errorId":   "err_1756700000000_a1b2c3d4e",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"url":       "/admin/articles/42",
	}, nil)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "err_1756700000000_a1b2c3d4e", resp["errorId"])
}

func TestServer_HandleReportAssignsErrorID(t *testing.T) {
	router := newTestServer(t, "").Routes()

	w := postReport(t, router, map[string]interface{}{
		"message": "save failed",
	}, nil)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Regexp(t, regexp.MustCompile(`^err_\d{13}_[0-9a-z]{9}$`), resp["errorId"])
}

func TestServer_HandleReportRejectsBadPayload(t *testing.T) {
	router := newTestServer(t, "").Routes()

	w := postReport(t, router, map[string]interface{}{"message": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/errors/report", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_HandleReportAuth(t *testing.T) {
	secret := "test-secret"
	router := newTestServer(t, secret).Routes()

	body := map[string]interface{}{"message": "boom"}

	w := postReport(t, router, body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postReport(t, router, body, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	w = postReport(t, router, body, map[string]string{"Authorization": "Bearer " + signed})
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestServer_ProbeTargets(t *testing.T) {
	router := newTestServer(t, "").Routes()

	for _, path := range []string{"/api/v1/articles", "/api/v1/categories", "/api/v1/authors", "/api/v1/users/me"} {
		req := httptest.NewRequest(http.MethodHead, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)

		req = httptest.NewRequest(http.MethodGet, path, nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestServer_HealthEndpoints(t *testing.T) {
	router := newTestServer(t, "").Routes()

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestServer_HandleStatsDegraded(t *testing.T) {
	router := newTestServer(t, "").Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/errors/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp)
}

func TestServer_HandleRecentDegraded(t *testing.T) {
	router := newTestServer(t, "").Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/errors/recent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Reports []json.RawMessage `json:"reports"`
		Source  string            `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Reports)
	assert.Equal(t, "none", resp.Source)
}
