// ABOUTME: Tests for bearer token middleware.
// ABOUTME: Verifies rejection of missing or wrong tokens and caller extraction.

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		expected   string
		authHeader string
		wantStatus int
		wantCaller string
	}{
		{"no header", "", "", http.StatusUnauthorized, ""},
		{"empty bearer", "", "Bearer ", http.StatusUnauthorized, ""},
		{"basic scheme rejected", "", "Basic abc", http.StatusUnauthorized, ""},
		{"any token accepted", "", "Bearer anything", http.StatusOK, DefaultCaller},
		{"lowercase scheme", "", "bearer anything", http.StatusOK, DefaultCaller},
		{"user prefix", "", "Bearer user:harper", http.StatusOK, "harper"},
		{"expected token matches", "s3cret", "Bearer s3cret", http.StatusOK, DefaultCaller},
		{"expected token mismatch", "s3cret", "Bearer other", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCaller string
			handler := Middleware(tt.expected)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotCaller = CallerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/api/data/v9.2/WhoAmI", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if gotCaller != tt.wantCaller {
				t.Errorf("CallerFromContext() = %q, want %q", gotCaller, tt.wantCaller)
			}
		})
	}
}
