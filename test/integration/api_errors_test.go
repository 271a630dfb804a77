package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"pdflux-api/internal/http/middleware"
	"pdflux-api/internal/security"
)

func TestErrorEnvelopeDefaultsToJSON(t *testing.T) {
	env := newTestEnv(t)

	resp, out := env.doJSON(t, http.MethodGet, "/api/v1/auth/me", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
	if out.Success || out.Error == nil || out.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("expected UNAUTHORIZED envelope, got %+v", out.Error)
	}
}

func TestErrorNegotiatesProblemJSON(t *testing.T) {
	env := newTestEnv(t)

	checks := []struct {
		name       string
		method     string
		path       string
		body       io.Reader
		wantStatus int
		wantCode   string
	}{
		{"unauthorized", http.MethodGet, "/api/v1/auth/me", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad request", http.MethodPost, "/api/v1/auth/login-code", strings.NewReader("oops"), http.StatusBadRequest, "BAD_REQUEST"},
		{"not found", http.MethodPost, "/api/v1/auth/login-code", strings.NewReader(`{"email":"ghost@example.com"}`), http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tc := range checks {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, env.baseURL+tc.path, tc.body)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			req.Header.Set("Accept", "application/problem+json")
			if tc.body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, err := env.client.Do(req)
			if err != nil {
				t.Fatalf("%s %s: %v", tc.method, tc.path, err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, resp.StatusCode)
			}
			if got := resp.Header.Get("Content-Type"); got != "application/problem+json" {
				t.Fatalf("expected application/problem+json, got %q", got)
			}
			var problem struct {
				Type      string `json:"type"`
				Status    int    `json:"status"`
				Detail    string `json:"detail"`
				Instance  string `json:"instance"`
				Code      string `json:"code"`
				RequestID string `json:"request_id"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil {
				t.Fatalf("decode problem details: %v", err)
			}
			if problem.Code != tc.wantCode || problem.Status != tc.wantStatus {
				t.Fatalf("unexpected problem %+v", problem)
			}
			if problem.Instance != tc.path {
				t.Fatalf("unexpected instance %q", problem.Instance)
			}
			wantType := "urn:problem:pdflux:" + strings.ToLower(strings.ReplaceAll(tc.wantCode, "_", "-"))
			if problem.Type != wantType {
				t.Fatalf("expected type %q, got %q", wantType, problem.Type)
			}
			if problem.Detail == "" || problem.RequestID == "" {
				t.Fatalf("expected detail and request id, got %+v", problem)
			}
		})
	}
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(2, time.Minute)
	r := chi.NewRouter()
	r.With(rl.Middleware()).Get("/x", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 on request %d, got %d", i+1, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header on 429")
	}
}

func TestRateLimiterKeysBySubjectAcrossIPs(t *testing.T) {
	jwtMgr := security.NewJWTManager("pdflux-api", "pdflux-clients", "integration-secret-0123456789abcd")
	limiter := middleware.NewRateLimiterWithKey(2, time.Minute, middleware.SubjectOrIPKeyFunc(jwtMgr))

	tokenUser1, err := jwtMgr.SignSessionToken(101, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign token user1: %v", err)
	}
	tokenUser2, err := jwtMgr.SignSessionToken(202, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign token user2: %v", err)
	}

	r := chi.NewRouter()
	r.With(limiter.Middleware()).Get("/x", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	hit := func(remoteAddr, token string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := hit("10.0.0.1:1234", tokenUser1); code != http.StatusOK {
		t.Fatalf("expected first user1 request 200, got %d", code)
	}
	if code := hit("10.0.0.2:1234", tokenUser1); code != http.StatusOK {
		t.Fatalf("expected second user1 request from another IP 200, got %d", code)
	}
	if code := hit("10.0.0.3:1234", tokenUser1); code != http.StatusTooManyRequests {
		t.Fatalf("expected user1 third request limited, got %d", code)
	}
	if code := hit("10.0.0.1:1234", tokenUser2); code != http.StatusOK {
		t.Fatalf("expected user2 to have a separate quota, got %d", code)
	}
}
