package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoIn struct {
	Text string `json:"text"`
}

func testBus(t *testing.T) *Bus {
	t.Helper()
	b := NewBus()
	require.NoError(t, b.Register("echo", Bind(func(ctx context.Context, in echoIn) (any, error) {
		return map[string]string{"text": in.Text}, nil
	})))
	require.NoError(t, b.Register("fail", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return nil, errors.New("PID options container not found")
	}))
	return b
}

func TestBus_Dispatch(t *testing.T) {
	b := testBus(t)
	ctx := context.Background()

	resp := b.Dispatch(ctx, Message{Action: "echo", Payload: json.RawMessage(`{"text":"hi"}`)})
	assert.True(t, resp.OK())
	assert.Equal(t, map[string]string{"text": "hi"}, resp.Data)

	resp = b.Dispatch(ctx, Message{Action: "echo"})
	assert.True(t, resp.OK(), "empty payload decodes as zero value")

	resp = b.Dispatch(ctx, Message{Action: "fail"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "PID options container not found", resp.Error)

	resp = b.Dispatch(ctx, Message{Action: "nope"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "unknown action")

	resp = b.Dispatch(ctx, Message{Action: "echo", Payload: json.RawMessage(`[1,2]`)})
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Error, "decode payload")
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantAction  string
		wantPayload string
	}{
		{"nested", `{"action":"performDNumberSearch","payload":{"dNumber":"D12345678"}}`, "performDNumberSearch", `{"dNumber":"D12345678"}`},
		{"top level", `{"action":"performDNumberSearch","dNumber":"D12345678"}`, "performDNumberSearch", `{"dNumber":"D12345678"}`},
		{"nested wins", `{"action":"a","payload":{"x":1},"x":2}`, "a", `{"x":1}`},
		{"no payload", `{"action":"swapAccount"}`, "swapAccount", ``},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var msg Message
			require.NoError(t, json.Unmarshal([]byte(tc.body), &msg))
			assert.Equal(t, tc.wantAction, msg.Action)
			if tc.wantPayload == "" {
				assert.Empty(t, msg.Payload)
				return
			}
			assert.JSONEq(t, tc.wantPayload, string(msg.Payload))
		})
	}
}

func TestHTTPHandler_TopLevelPayloadReachesHandler(t *testing.T) {
	h := NewHTTPHandler(testBus(t))
	req := httptest.NewRequest(http.MethodPost, "/message", strings.NewReader(`{"action":"echo","text":"flat"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","data":{"text":"flat"}}`, rec.Body.String())
}

func TestBus_RegisterTwice(t *testing.T) {
	b := testBus(t)
	assert.Error(t, b.Register("echo", nil))
	assert.Equal(t, []string{"echo", "fail"}, b.Actions())
}

func TestHTTPHandler(t *testing.T) {
	h := NewHTTPHandler(testBus(t))

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{"success", http.MethodPost, "/message", `{"action":"echo","payload":{"text":"x"}}`, http.StatusOK, StatusSuccess, ""},
		{"top-level payload", http.MethodPost, "/message", `{"action":"echo","text":"x"}`, http.StatusOK, StatusSuccess, ""},
		{"bad action type", http.MethodPost, "/message", `{"action":7}`, http.StatusBadRequest, StatusError, "invalid message"},
		{"action error", http.MethodPost, "/message", `{"action":"fail"}`, http.StatusUnprocessableEntity, StatusError, "PID options container not found"},
		{"unknown action", http.MethodPost, "/message", `{"action":"nope"}`, http.StatusNotFound, StatusError, "unknown action"},
		{"missing action", http.MethodPost, "/message", `{}`, http.StatusBadRequest, StatusError, "action is required"},
		{"bad json", http.MethodPost, "/message", `{`, http.StatusBadRequest, StatusError, "invalid message"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantStatus, resp.Status)
			if tc.wantError != "" {
				assert.Contains(t, resp.Error, tc.wantError)
			}
		})
	}
}

func TestHTTPHandler_Health(t *testing.T) {
	h := NewHTTPHandler(testBus(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status  string   `json:"status"`
		Actions []string `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"echo", "fail"}, body.Actions)
}

func TestHTTPHandler_MethodNotAllowed(t *testing.T) {
	h := NewHTTPHandler(testBus(t))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/message", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
