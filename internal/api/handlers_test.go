package api

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blockrand/app"
	"blockrand/domain/core"
	"blockrand/internal/errors"
	"blockrand/internal/randomization"
	"blockrand/internal/testkit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	svc    *app.EnrollmentService
	repo   *testkit.InMemoryHistoryRepository
	hub    *SSEHub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := randomization.NewEngine(randomization.DefaultConfig(), nil, nil, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	repo := testkit.NewInMemoryHistoryRepository()
	svc := app.NewEnrollmentService(engine, repo, repo)
	hub := NewSSEHub()
	t.Cleanup(hub.Close)
	svc.AddListener(NewSSEEventBroadcaster(hub))

	handler := NewAssignmentHandler(svc, app.NewBalanceReporter(engine))
	return &fixture{router: NewRouter(handler, hub), svc: svc, repo: repo, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateAssignment(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/assignments", map[string]interface{}{
		"subject_id": "S001",
		"name":       "Casey Lee",
		"gender":     "Male",
		"age":        54,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	record := body["record"].(map[string]interface{})
	assert.Equal(t, "S001", record["subject_id"])
	assert.Equal(t, "Male / <55", record["strata"])
	assert.Contains(t, []interface{}{"A", "B"}, record["group"])
	decision := body["decision"].(map[string]interface{})
	assert.Equal(t, "none", decision["reason"])
	assert.Equal(t, 1, f.repo.Len())
}

func TestCreateAssignment_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing age", map[string]interface{}{"subject_id": "S1", "gender": "Male"}},
		{"missing subject", map[string]interface{}{"gender": "Male", "age": 30}},
		{"negative age", map[string]interface{}{"subject_id": "S1", "gender": "Male", "age": -3}},
		{"unknown gender", map[string]interface{}{"subject_id": "S1", "gender": "X", "age": 30}},
		{"wrong type", map[string]interface{}{"subject_id": "S1", "gender": "Male", "age": "old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(t, http.MethodPost, "/api/assignments", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, errors.CodeInvalidInput, decode(t, w)["code"])
			assert.Empty(t, f.svc.History())
		})
	}
}

func TestCreateAssignment_PersistenceFailureStillReportsGroup(t *testing.T) {
	f := newFixture(t)
	f.repo.FailNextAppend()

	w := f.do(t, http.MethodPost, "/api/assignments", map[string]interface{}{"subject_id": "S1", "gender": "Female", "age": 70})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode(t, w)
	assert.Equal(t, errors.CodePersistence, body["code"])
	require.Contains(t, body, "record")
	assert.Len(t, f.svc.History(), 1)
}

func TestListAssignmentsAndBalance(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"S1", "S2", "S3", "S4"} {
		w := f.do(t, http.MethodPost, "/api/assignments", map[string]interface{}{"subject_id": id, "gender": "Female", "age": 30})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := f.do(t, http.MethodGet, "/api/assignments", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)
	assert.Equal(t, float64(4), list["count"])
	first := list["assignments"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "S1", first["subject_id"])

	w = f.do(t, http.MethodGet, "/api/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report app.BalanceReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Global.A)
	assert.Equal(t, 2, report.Global.B)
	assert.Len(t, report.Strata, 4)
}

func TestUpdateBlockSize(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/settings/block-size", map[string]interface{}{"block_size": 8})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(8), decode(t, w)["block_size"])

	w = f.do(t, http.MethodPut, "/api/settings/block-size", map[string]interface{}{"block_size": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/api/settings/block-size", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode(t, w)
	assert.Equal(t, float64(8), settings["block_size"])
	assert.Equal(t, "neutral", settings["priority_mode"])
	assert.Len(t, settings["strata"], 4)
}

func TestExportAndHealth(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/assignments", map[string]interface{}{"subject_id": "S1", "gender": "Male", "age": 60})

	w := f.do(t, http.MethodPost, "/api/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	count, size := f.repo.Exports()
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, size)

	w = f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(errors.InvalidInput("x")))
	assert.Equal(t, http.StatusNotFound, StatusFor(errors.NotFound("record")))
	assert.Equal(t, http.StatusConflict, StatusFor(errors.ConfigInvalid("x")))
	assert.Equal(t, http.StatusConflict, StatusFor(errors.Wrap(core.NewUnknownStrataError("Other / <55"), "assign")))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.Persistence(nil)))
}

func TestSSEHub_BroadcastsAssignments(t *testing.T) {
	f := newFixture(t)
	events, unsubscribe, ok := f.hub.Subscribe()
	require.True(t, ok)
	defer unsubscribe()

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	w := f.do(t, http.MethodPost, "/api/assignments", map[string]interface{}{"subject_id": "S9", "gender": "Male", "age": 20})
	require.Equal(t, http.StatusCreated, w.Code)

	select {
	case event := <-events:
		assert.Equal(t, "assignment", event.EventType)
		assert.Equal(t, "S9", event.SubjectID)
		assert.Equal(t, "Male / <55", event.Strata)
	case <-time.After(2 * time.Second):
		t.Fatal("no assignment event received")
	}
}
