package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticTokenMiddleware(t *testing.T) {
	var reached bool
	handler := StaticTokenMiddleware("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		header string
		status int
		pass   bool
	}{
		{"valid token", "Bearer s3cret", http.StatusNoContent, true},
		{"case-insensitive scheme", "bearer s3cret", http.StatusNoContent, true},
		{"wrong token", "Bearer nope", http.StatusUnauthorized, false},
		{"missing header", "", http.StatusUnauthorized, false},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized, false},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if reached != tc.pass {
				t.Fatalf("expected handler reached=%v", tc.pass)
			}
			if !tc.pass && rec.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("expected WWW-Authenticate header on rejection")
			}
		})
	}
}

func TestStaticTokenMiddlewareUnconfigured(t *testing.T) {
	handler := StaticTokenMiddleware("  ")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without a configured token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
