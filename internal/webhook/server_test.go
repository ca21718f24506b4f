package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/mattjoyce/convhost/internal/config"
)

// mockSubmitter records submitted payloads.
type mockSubmitter struct {
	payloads []any
	accept   bool
}

func (m *mockSubmitter) Submit(payload any) (string, bool) {
	m.payloads = append(m.payloads, payload)
	return "msg-123", m.accept
}

const testSecret = "test-secret"

func newTestServer(ms *mockSubmitter) *Server {
	cfg := Config{
		Listen: "127.0.0.1:0",
		Endpoints: []EndpointConfig{{
			Path:        "/hooks/scanner",
			Secret:      testSecret,
			MaxBodySize: 128,
		}},
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(cfg, ms, logger)
}

func post(s *Server, path string, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(DefaultSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHandleWebhook_ValidSignature(t *testing.T) {
	ms := &mockSubmitter{accept: true}
	s := newTestServer(ms)
	body := []byte(`{"cmd":"k2pdfopt","args":["in.pdf"]}`)

	rec := post(s, "/hooks/scanner", body, Signature(body, testSecret))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	var resp SubmitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MessageID != "msg-123" || resp.Status != "accepted" {
		t.Errorf("response = %+v", resp)
	}
	if len(ms.payloads) != 1 {
		t.Fatalf("submitted %d payloads, want 1", len(ms.payloads))
	}
	dict, ok := ms.payloads[0].(map[string]any)
	if !ok || dict["cmd"] != "k2pdfopt" {
		t.Errorf("payload = %#v", ms.payloads[0])
	}
}

func TestHandleWebhook_Rejections(t *testing.T) {
	body := []byte(`{"cmd":"k2pdfopt","args":[]}`)
	large := bytes.Repeat([]byte("x"), 200)

	tests := []struct {
		name      string
		path      string
		body      []byte
		signature string
		want      int
	}{
		{"missing signature", "/hooks/scanner", body, "", http.StatusForbidden},
		{"bad signature", "/hooks/scanner", body, Signature(body, "wrong"), http.StatusForbidden},
		{"too large", "/hooks/scanner", large, Signature(large, testSecret), http.StatusRequestEntityTooLarge},
		{"invalid json", "/hooks/scanner", []byte(`{"cmd`), Signature([]byte(`{"cmd`), testSecret), http.StatusBadRequest},
		{"unknown path", "/hooks/other", body, Signature(body, testSecret), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := &mockSubmitter{accept: true}
			rec := post(newTestServer(ms), tt.path, tt.body, tt.signature)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if len(ms.payloads) != 0 {
				t.Errorf("payload submitted on rejected request")
			}
		})
	}
}

func TestHandleWebhook_DroppedReturns503(t *testing.T) {
	s := newTestServer(&mockSubmitter{accept: false})
	body := []byte(`{"cmd":"k2pdfopt","args":[]}`)

	rec := post(s, "/hooks/scanner", body, Signature(body, testSecret))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.WebhooksConfig{
		Listen: "127.0.0.1:8081",
		Endpoints: []config.WebhookEndpoint{
			{Path: "/hooks/a", Secret: "s", MaxBodySize: "64KB"},
		},
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	ep := cfg.Endpoints[0]
	if ep.MaxBodySize != 64*1024 || ep.SignatureHeader != DefaultSignatureHeader {
		t.Errorf("endpoint = %+v", ep)
	}

	if _, err := FromConfig(config.WebhooksConfig{Endpoints: []config.WebhookEndpoint{{Path: "/x"}}}); err == nil {
		t.Error("expected error for missing secret")
	}
	if _, err := FromConfig(config.WebhooksConfig{Endpoints: []config.WebhookEndpoint{{Path: "/x", Secret: "s", MaxBodySize: "big"}}}); err == nil {
		t.Error("expected error for bad max_body_size")
	}
}
