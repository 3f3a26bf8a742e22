package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authTestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddlewareDisabled(t *testing.T) {
	mw := BearerAuthMiddleware(nil)
	handler := mw(authTestHandler())

	req := httptest.NewRequest("POST", "/v1/actions", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", rr.Code)
	}
}

func TestBearerAuthMiddleware(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret-key"})
	handler := mw(authTestHandler())

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid key", "Bearer secret-key", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret-key", http.StatusUnauthorized},
		{"wrong key", "Bearer other-key", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/actions", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestBearerAuthMiddlewareExemptPaths(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret-key"})
	handler := mw(authTestHandler())

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest("GET", path, http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200 without credentials", path, rr.Code)
		}
	}
}
