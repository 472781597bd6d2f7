package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantKeep bool
	}{
		{"generated when absent", "", false},
		{"caller uuid kept", "6f1c2a4e-1b7d-4c1a-9f0e-2d3b4c5d6e7f", true},
		{"caller token kept", "edge:req_42.retry-1", true},
		{"spaces replaced", "two words", false},
		{"newline replaced", "abc\nlevel=ERROR", false},
		{"oversized replaced", strings.Repeat("a", maxRequestIDLen+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inContext string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				inContext = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/recommendations", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			echoed := rr.Header().Get(RequestIDHeader)
			if echoed != inContext {
				t.Errorf("response header %q differs from context %q", echoed, inContext)
			}
			if tt.wantKeep {
				if inContext != tt.incoming {
					t.Errorf("request ID = %q, want caller's %q", inContext, tt.incoming)
				}
				return
			}
			if _, err := uuid.Parse(inContext); err != nil {
				t.Errorf("expected a generated UUID, got %q", inContext)
			}
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID() = %q, want empty", got)
	}
}
