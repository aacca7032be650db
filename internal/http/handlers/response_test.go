package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/esic-backend/internal/services"
)

// serveErr runs failErr(err) behind a request id and a captured logger.
func serveErr(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	lg := zerolog.New(&buf)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-7")
		c.Set("logger", &lg)
		c.Next()
	})
	r.GET("/x", func(c *gin.Context) { failErr(c, err) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	var er ErrorResponse
	if jerr := json.Unmarshal(w.Body.Bytes(), &er); jerr != nil {
		t.Fatalf("json: %v (%s)", jerr, w.Body.String())
	}
	return w, er, buf.String()
}

func TestFailErr_Mapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
		field  string
	}{
		{&services.ValidationError{Field: "requester.email", Message: "a valid e-mail address is required"}, http.StatusBadRequest, ErrCodeValidation, "requester.email"},
		{fmt.Errorf("load: %w", services.ErrRequestNotFound), http.StatusNotFound, ErrCodeNotFound, ""},
		{services.ErrAppealNotFound, http.StatusNotFound, ErrCodeNotFound, ""},
		{services.ErrAlreadyDecided, http.StatusConflict, ErrCodeAlreadyDecided, ""},
		{services.ErrAppealExhausted, http.StatusConflict, ErrCodeAppealExhausted, ""},
		{errors.New("disk I/O error"), http.StatusInternalServerError, ErrCodeInternal, ""},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			w, er, logs := serveErr(t, tc.err)
			if w.Code != tc.status || er.Code != tc.code || er.Field != tc.field || er.RequestID != "rid-7" {
				t.Fatalf("got %d %+v", w.Code, er)
			}
			if tc.status >= 500 {
				if er.Message != "internal server error" {
					t.Fatalf("internal cause leaked: %q", er.Message)
				}
				if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, "disk I/O error") {
					t.Fatalf("5xx not logged with cause: %s", logs)
				}
			} else if logs != "" {
				t.Fatalf("4xx should not log: %s", logs)
			}
		})
	}
}

func TestFail_ExportedWrapperAndOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/gone", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrCodeNotFound, "route not found") })
	r.GET("/ok", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"protocol": "ESIC-2024-000001"}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gone", nil))
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"code":"not_found"`) {
		t.Fatalf("Fail: %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "request_id") || strings.Contains(w.Body.String(), "field") {
		t.Fatalf("empty fields should be omitted: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w.Code != http.StatusCreated || !strings.Contains(w.Body.String(), "ESIC-2024-000001") {
		t.Fatalf("ok: %d %s", w.Code, w.Body.String())
	}
}
