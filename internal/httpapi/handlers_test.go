package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrclass/internal/auth"
	"qrclass/internal/config"
	"qrclass/internal/ledger"
	"qrclass/internal/report"
	"qrclass/internal/session"
	"qrclass/internal/token"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "qrclass-test"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := config.App{
		Env:             "test",
		PublicBaseURL:   "https://attendance.example.edu",
		JWTIssuer:       testIssuer,
		JWTSigningKey:   testKey,
		StoreBackend:    "memory",
		RateLimitPerMin: 10000,
		SubmitRetries:   1,
	}
	sessions := session.NewMemoryRepository()
	records := ledger.NewMemoryRepository()
	return New(Deps{
		Cfg:      cfg,
		Registry: session.NewRegistry(sessions, nil),
		Sessions: sessions,
		Ledger:   ledger.NewService(records, sessions, nil, nil, cfg.SubmitRetries),
		Reports:  report.NewService(sessions, records, nil),
		Codec:    token.NewCodec(cfg.PublicBaseURL),
	})
}

func bearer(t *testing.T, subject string, role auth.Role) string {
	t.Helper()
	pair, err := auth.Issue(subject, role, testIssuer, testKey, time.Minute, time.Hour)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}

func do(t *testing.T, r *gin.Engine, method, path, authz string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// Full protocol walk: instructor opens a session, the payload round-trips
// through a scan, the student marks attendance once, the duplicate is
// rejected, and the instructor sees exactly one record.
func TestScanToLedgerFlow(t *testing.T) {
	r := newTestServer(t)
	instructorTok := bearer(t, "ins_1", auth.RoleInstructor)
	studentTok := bearer(t, "stu_1", auth.RoleStudent)

	w := do(t, r, http.MethodPost, "/api/v1/sessions", instructorTok, gin.H{"name": "Math101"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sessionID := decodeBody(t, w)["session_id"].(string)
	require.NotEmpty(t, sessionID)

	// Encode: the payload embeds the session id as a scannable URL.
	w = do(t, r, http.MethodGet, "/api/v1/sessions/"+sessionID+"/token", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	payloadURL := decodeBody(t, w)["url"].(string)
	assert.Contains(t, payloadURL, sessionID)

	// Decode: a scanner hands back the raw URL.
	w = do(t, r, http.MethodPost, "/api/v1/scan/decode", "", gin.H{"code": payloadURL})
	require.Equal(t, http.StatusOK, w.Code)
	decoded := decodeBody(t, w)
	assert.Equal(t, true, decoded["recognized"])
	assert.Equal(t, sessionID, decoded["session_id"])

	// Submit once.
	w = do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"session_id": sessionID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	recordID := decodeBody(t, w)["id"].(string)
	require.NotEmpty(t, recordID)

	// The repeat is a conflict, not a second row.
	w = do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"session_id": sessionID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/attendance/"+sessionID, instructorTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	records := decodeBody(t, w)["records"].([]any)
	assert.Len(t, records, 1)
}

func TestSubmitViaScannedCode(t *testing.T) {
	r := newTestServer(t)
	instructorTok := bearer(t, "ins_1", auth.RoleInstructor)
	studentTok := bearer(t, "stu_1", auth.RoleStudent)

	w := do(t, r, http.MethodPost, "/api/v1/sessions", instructorTok, gin.H{"name": "Chem301"})
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := decodeBody(t, w)["session_id"].(string)

	code := fmt.Sprintf(`{"session_id":%q}`, sessionID)
	w = do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"code": code})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"code": "garbage scan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/sessions"},
		{http.MethodGet, "/api/v1/sessions"},
		{http.MethodPost, "/api/v1/attendance"},
		{http.MethodGet, "/api/v1/reports/overview"},
	} {
		w := do(t, r, route.method, route.path, "", gin.H{})
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}

	w := do(t, r, http.MethodPost, "/api/v1/sessions", "Bearer not-a-token", gin.H{"name": "X"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleEnforcement(t *testing.T) {
	r := newTestServer(t)
	instructorTok := bearer(t, "ins_1", auth.RoleInstructor)
	studentTok := bearer(t, "stu_1", auth.RoleStudent)
	adminTok := bearer(t, "adm_1", auth.RoleAdmin)

	// Students cannot open sessions.
	w := do(t, r, http.MethodPost, "/api/v1/sessions", studentTok, gin.H{"name": "Math101"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/sessions", instructorTok, gin.H{"name": "Math101"})
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := decodeBody(t, w)["session_id"].(string)

	// Instructors cannot mark attendance.
	w = do(t, r, http.MethodPost, "/api/v1/attendance", instructorTok, gin.H{"session_id": sessionID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Only admins delete sessions.
	w = do(t, r, http.MethodDelete, "/api/v1/sessions/"+sessionID, instructorTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(t, r, http.MethodDelete, "/api/v1/sessions/"+sessionID, adminTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitUnknownSession(t *testing.T) {
	r := newTestServer(t)
	studentTok := bearer(t, "stu_2", auth.RoleStudent)

	w := do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"session_id": "S999"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"session_id": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestSessionEndpoint(t *testing.T) {
	r := newTestServer(t)
	instructorTok := bearer(t, "ins_1", auth.RoleInstructor)

	w := do(t, r, http.MethodGet, "/api/v1/sessions/latest", instructorTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	for _, name := range []string{"First", "Second"} {
		w = do(t, r, http.MethodPost, "/api/v1/sessions", instructorTok, gin.H{"name": name})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = do(t, r, http.MethodGet, "/api/v1/sessions/latest", instructorTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Second", decodeBody(t, w)["name"])
}

func TestQREndpoint(t *testing.T) {
	r := newTestServer(t)
	instructorTok := bearer(t, "ins_1", auth.RoleInstructor)

	w := do(t, r, http.MethodGet, "/api/v1/sessions/missing/qr", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/sessions", instructorTok, gin.H{"name": "Math101"})
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := decodeBody(t, w)["session_id"].(string)

	w = do(t, r, http.MethodGet, "/api/v1/sessions/"+sessionID+"/qr?size=128", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Greater(t, w.Body.Len(), 100)
}

func TestDecodeEndpointIsTotal(t *testing.T) {
	r := newTestServer(t)

	for _, raw := range []string{"", "garbage", `{"wrong":"shape"}`, "https://x.test/nope"} {
		w := do(t, r, http.MethodPost, "/api/v1/scan/decode", "", gin.H{"code": raw})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["recognized"], "input %q", raw)
	}
}

func TestOverviewEndpoint(t *testing.T) {
	r := newTestServer(t)
	instructorTok := bearer(t, "ins_1", auth.RoleInstructor)
	studentTok := bearer(t, "stu_1", auth.RoleStudent)

	w := do(t, r, http.MethodPost, "/api/v1/sessions", instructorTok, gin.H{"name": "Math101"})
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := decodeBody(t, w)["session_id"].(string)

	w = do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"session_id": sessionID})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/reports/overview", instructorTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessions := decodeBody(t, w)["sessions"].([]any)
	require.Len(t, sessions, 1)
	summary := sessions[0].(map[string]any)
	assert.Equal(t, float64(1), summary["attendance"])

	w = do(t, r, http.MethodGet, "/api/v1/reports/overview", studentTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminAttendanceSurface(t *testing.T) {
	r := newTestServer(t)
	instructorTok := bearer(t, "ins_1", auth.RoleInstructor)
	studentTok := bearer(t, "stu_1", auth.RoleStudent)
	adminTok := bearer(t, "adm_1", auth.RoleAdmin)

	w := do(t, r, http.MethodPost, "/api/v1/sessions", instructorTok, gin.H{"name": "Math101"})
	require.Equal(t, http.StatusCreated, w.Code)
	sessionID := decodeBody(t, w)["session_id"].(string)

	w = do(t, r, http.MethodPost, "/api/v1/attendance", studentTok, gin.H{"session_id": sessionID})
	require.Equal(t, http.StatusCreated, w.Code)
	recordID := decodeBody(t, w)["id"].(string)

	w = do(t, r, http.MethodGet, "/api/v1/attendance", adminTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["records"].([]any), 1)

	w = do(t, r, http.MethodGet, "/api/v1/attendance", instructorTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/attendance/"+recordID, adminTok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodDelete, "/api/v1/attendance/"+recordID, adminTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
