package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generated when missing", incoming: "", keep: false},
		{name: "propagates client id", incoming: "abc-123", keep: true},
		{name: "rejects spaces", incoming: "abc 123", keep: false},
		{name: "rejects oversized", incoming: strings.Repeat("a", 129), keep: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen string
			h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
				t.Fatalf("request id not propagated: ctx %q header %q", seen, rec.Header().Get(RequestIDHeader))
			}
			if tc.keep != (seen == tc.incoming) {
				t.Fatalf("keep=%v but got %q for incoming %q", tc.keep, seen, tc.incoming)
			}
		})
	}
}
