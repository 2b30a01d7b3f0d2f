package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"n": 1}) })
	r.GET("/fail", func(c *gin.Context) { Fail(c, http.StatusConflict, ErrSessionClosed) })
	return r
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"client id kept", "autosave-42.retry_1", true},
		{"missing id generated", "", false},
		{"header injection replaced", "abc\r\nX-Evil: 1", false},
		{"oversized replaced", strings.Repeat("a", maxRequestIDLen+1), false},
	}
	r := newRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ok", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if tt.keep && got != tt.header {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.header)
			}
			if !tt.keep && (got == tt.header || len(got) != 36) {
				t.Errorf("X-Request-ID = %q, want a fresh UUID", got)
			}

			var body Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Metadata.RequestID != got {
				t.Errorf("metadata request_id = %q, header %q", body.Metadata.RequestID, got)
			}
		})
	}
}

func TestFailEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var body struct {
		Data     json.RawMessage `json:"data"`
		Error    *ErrorBody      `json:"error"`
		Metadata Metadata        `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if string(body.Data) != "null" {
		t.Errorf("data = %s, want null", body.Data)
	}
	if body.Error == nil || body.Error.Code != ErrSessionClosed || body.Error.Message == "" {
		t.Errorf("error = %+v", body.Error)
	}
	if body.Metadata.ServerTimeMs == 0 {
		t.Error("server_time_ms not set")
	}
}
