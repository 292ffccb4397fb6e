package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/telemetry"
	"github.com/obdkit/obdkit-go/pkg/transport/transporttest"
)

func newTestServer(t *testing.T) (http.Handler, *telemetry.Engine, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New()
	engine := telemetry.New(telemetry.DefaultConfig(), fake, nil)
	t.Cleanup(engine.Close)
	return NewServer(engine).Router(), engine, fake
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	w, resp := doJSON(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if resp["status"] != "ok" {
		t.Errorf("Expected status 'ok', got %v", resp["status"])
	}
}

func TestConnectDisconnect(t *testing.T) {
	h, _, fake := newTestServer(t)

	w, resp := doJSON(t, h, http.MethodPost, "/api/v1/connect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("connect: expected 200, got %d", w.Code)
	}
	if resp["state"] != "CONNECTED" {
		t.Errorf("state = %v, want CONNECTED", resp["state"])
	}
	if fake.OpenCalls() != 1 {
		t.Errorf("OpenCalls = %d, want 1", fake.OpenCalls())
	}

	w, resp = doJSON(t, h, http.MethodPost, "/api/v1/disconnect", "")
	if w.Code != http.StatusOK {
		t.Fatalf("disconnect: expected 200, got %d", w.Code)
	}
	if resp["state"] != "DISCONNECTED" {
		t.Errorf("state = %v, want DISCONNECTED", resp["state"])
	}
}

var errAdapterDown = errors.New("adapter down")

func TestConnectFailureSurfacesReason(t *testing.T) {
	h, _, fake := newTestServer(t)
	fake.OpenErr = errAdapterDown

	w, resp := doJSON(t, h, http.MethodPost, "/api/v1/connect", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
	if resp["error"] != errAdapterDown.Error() {
		t.Errorf("error = %v, want %q", resp["error"], errAdapterDown.Error())
	}

	_, resp = doJSON(t, h, http.MethodGet, "/api/v1/status", "")
	if resp["state"] != "FAILED" {
		t.Errorf("state = %v, want FAILED", resp["state"])
	}
	if resp["fail_reason"] != errAdapterDown.Error() {
		t.Errorf("fail_reason = %v, want %q", resp["fail_reason"], errAdapterDown.Error())
	}
}

func TestInterestLifecycle(t *testing.T) {
	h, engine, _ := newTestServer(t)

	w, resp := doJSON(t, h, http.MethodPost, "/api/v1/tokens", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create token: expected 201, got %d", w.Code)
	}
	token, _ := resp["token"].(string)
	if token == "" {
		t.Fatal("empty token")
	}

	w, resp = doJSON(t, h, http.MethodPut, "/api/v1/tokens/"+token, `{"pids":["0x0C","0x0D"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("replace: expected 200, got %d", w.Code)
	}
	interested, _ := resp["interested"].([]interface{})
	if len(interested) != 2 {
		t.Errorf("interested = %v, want two entries", interested)
	}
	if !engine.InterestedSet().Contains(pid.IDEngineRPM) {
		t.Error("engine interest missing rpm after PUT")
	}

	w, resp = doJSON(t, h, http.MethodDelete, "/api/v1/tokens/"+token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}
	interested, _ = resp["interested"].([]interface{})
	if len(interested) != 0 {
		t.Errorf("interested after clear = %v, want empty", interested)
	}
}

func TestReplaceRejectsBadPID(t *testing.T) {
	h, _, _ := newTestServer(t)

	_, resp := doJSON(t, h, http.MethodPost, "/api/v1/tokens", "")
	token, _ := resp["token"].(string)

	w, _ := doJSON(t, h, http.MethodPut, "/api/v1/tokens/"+token, `{"pids":["banana"]}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestStatsEndpoints(t *testing.T) {
	h, engine, fake := newTestServer(t)

	tok := engine.MakeToken()
	engine.Replace(pid.NewSet(pid.IDEngineRPM), tok)
	if _, resp := doJSON(t, h, http.MethodPost, "/api/v1/connect", ""); resp["state"] != "CONNECTED" {
		t.Fatalf("connect failed: %v", resp)
	}

	fake.Last().Deliver(pid.IDEngineRPM, pid.Measurement{Value: 1500, Unit: pid.UnitRPM})
	fake.Last().Deliver(pid.IDEngineRPM, pid.Measurement{Value: 1800, Unit: pid.UnitRPM})

	w, resp := doJSON(t, h, http.MethodGet, "/api/v1/stats/0x0C", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if resp["latest"] != 1800.0 || resp["min"] != 1500.0 || resp["max"] != 1800.0 {
		t.Errorf("stat = %v, want latest 1800 min 1500 max 1800", resp)
	}

	w, _ = doJSON(t, h, http.MethodGet, "/api/v1/stats/0x0D", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unsampled pid: expected 404, got %d", w.Code)
	}

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/stats/reset", `{"pid":"0x0C"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d", w.Code)
	}
	_, resp = doJSON(t, h, http.MethodGet, "/api/v1/stats/0x0C", "")
	if resp["min"] != 1800.0 || resp["samples"] != 1.0 {
		t.Errorf("after reset = %v, want min 1800 samples 1", resp)
	}
}

func TestCodesEndpoint(t *testing.T) {
	h, _, fake := newTestServer(t)
	fake.ScanCodesResult = []dtc.Code{dtc.MustParse("P0301")}

	doJSON(t, h, http.MethodPost, "/api/v1/connect", "")

	_, resp := doJSON(t, h, http.MethodGet, "/api/v1/codes", "")
	codes, _ := resp["codes"].([]interface{})
	if len(codes) != 1 {
		t.Fatalf("codes = %v, want one entry", resp["codes"])
	}
	entry, _ := codes[0].(map[string]interface{})
	if entry["code"] != "P0301" || entry["generic"] != true {
		t.Errorf("code entry = %v, want P0301 generic", entry)
	}
}

func TestParamsEndpoint(t *testing.T) {
	h, _, _ := newTestServer(t)

	w, resp := doJSON(t, h, http.MethodGet, "/api/v1/params", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	params, _ := resp["params"].([]interface{})
	if len(params) == 0 {
		t.Fatal("params list is empty")
	}
}

func TestReplaceWithTTL(t *testing.T) {
	h, engine, _ := newTestServer(t)

	_, resp := doJSON(t, h, http.MethodPost, "/api/v1/tokens", "")
	token, _ := resp["token"].(string)

	w, resp := doJSON(t, h, http.MethodPut, "/api/v1/tokens/"+token, `{"pids":["0x0C"],"ttl_seconds":60}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", w.Code, resp)
	}
	if resp["expires_at"] == nil {
		t.Error("response missing expires_at for TTL registration")
	}
	if !engine.InterestedSet().Contains(pid.IDEngineRPM) {
		t.Error("engine interest missing rpm after TTL PUT")
	}

	w, resp = doJSON(t, h, http.MethodPut, "/api/v1/tokens/"+token, `{"pids":["0x0C"],"ttl_seconds":-5}`)
	if w.Code != http.StatusOK {
		t.Errorf("non-positive TTL should fall back to plain replace, got %d: %v", w.Code, resp)
	}
}
