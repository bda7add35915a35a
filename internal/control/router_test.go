package control

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/model"
	"github.com/vtuber/controlplane/internal/scheduler"
	"github.com/vtuber/controlplane/internal/session"
	"github.com/vtuber/controlplane/pkg/response"
)

func testApp(t *testing.T) (*fiber.App, *session.Registry) {
	t.Helper()
	descriptor, err := model.Descriptor("Miko", map[string]int{"joy": 3}, map[string][]int{"idle": {0, 1}}, "", nil)
	require.NoError(t, err)

	reg := session.NewRegistry(8, func() *adapter.Context {
		return &adapter.Context{Model: descriptor}
	})
	sched := scheduler.New(reg, "default", 1, 2, []string{"hi"})

	app := fiber.New()
	app.Use(response.Recovery())
	rt := New(reg, sched, nil)
	rt.Register(app)
	return app, reg
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return resp, decoded
}

func TestHandleExpression_Success(t *testing.T) {
	app, reg := testApp(t)

	resp, decoded := doJSON(t, app, http.MethodPost, "/api/expression",
		map[string]any{"expressionId": 3, "duration": 5000, "priority": 10}, map[string]string{"X-Client-UID": "alice"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	results := decoded["results"].(map[string]any)
	assert.Equal(t, "success", results["status"])

	s, ok := reg.Get("alice")
	require.True(t, ok)
	assert.Equal(t, adapter.ModeInternal, s.Adapter.Mode())
}

func TestHandleExpression_UnknownIDReturns200WithErrorStatus(t *testing.T) {
	app, _ := testApp(t)

	resp, decoded := doJSON(t, app, http.MethodPost, "/api/expression",
		map[string]any{"expressionId": 99}, map[string]string{"X-Client-UID": "bob"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	results := decoded["results"].(map[string]any)
	assert.Equal(t, "error", results["status"])
}

func TestHandleSpeak_RequiresAtLeastOneField(t *testing.T) {
	app, _ := testApp(t)

	resp, decoded := doJSON(t, app, http.MethodPost, "/api/autonomous/speak", map[string]any{}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decoded["code"])
}

func TestHandleSpeak_SkipTTS(t *testing.T) {
	app, _ := testApp(t)

	resp, decoded := doJSON(t, app, http.MethodPost, "/api/autonomous/speak",
		map[string]any{"expressions": []int{3}, "skip_tts": true}, map[string]string{"X-Client-UID": "carl"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	results := decoded["results"].(map[string]any)
	assert.Equal(t, "success", results["status"])
	assert.Equal(t, false, results["tts_generated"])
}

func TestHandleControl_RejectsMinGreaterThanMax(t *testing.T) {
	app, _ := testApp(t)

	resp, decoded := doJSON(t, app, http.MethodPost, "/api/autonomous/control",
		map[string]any{"min_interval": 240, "max_interval": 120}, nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decoded["code"])
}

func TestHandleControl_UpdatesSchedulerSnapshot(t *testing.T) {
	app, _ := testApp(t)

	resp, decoded := doJSON(t, app, http.MethodPost, "/api/autonomous/control",
		map[string]any{"enabled": true, "min_interval": 120.0, "max_interval": 240.0}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	results := decoded["results"].(map[string]any)
	assert.Equal(t, true, results["enabled"])
	assert.Equal(t, 120.0, results["min_interval"])
	assert.Equal(t, 240.0, results["max_interval"])
}

func TestHandleMotion_ClientUIDHeaderFallback(t *testing.T) {
	app, reg := testApp(t)

	resp, decoded := doJSON(t, app, http.MethodPost, "/api/motion",
		map[string]any{"motionGroup": "idle", "motionIndex": 0}, map[string]string{"X-Client-UID": "dana"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	results := decoded["results"].(map[string]any)
	assert.Equal(t, "success", results["status"])
	_, ok := reg.Get("dana")
	assert.True(t, ok)
}

func TestHandleMotion_BodyClientUIDWinsOverHeader(t *testing.T) {
	app, reg := testApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/motion",
		map[string]any{"motionGroup": "idle", "motionIndex": 0, "client_uid": "from-body"},
		map[string]string{"X-Client-UID": "from-header"})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, fromBody := reg.Get("from-body")
	_, fromHeader := reg.Get("from-header")
	assert.True(t, fromBody)
	assert.False(t, fromHeader)
}
