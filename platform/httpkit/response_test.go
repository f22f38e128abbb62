package httpkit

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"crm_inbox_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation error", apperr.Validation("bad input"), http.StatusBadRequest},
		{"wrapped validation error", fmt.Errorf("ingest: %w", apperr.Validation("bad input")), http.StatusBadRequest},
		{"not found", apperr.NotFound("missing"), http.StatusNotFound},
		{"duplicate delivery", apperr.Duplicate("already processed"), http.StatusOK},
		{"untyped infrastructure error", errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"), http.StatusInternalServerError},
		{"wrapped infrastructure error", fmt.Errorf("dedup claim: %w", errors.New("connection refused")), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			if handled := HandleError(c, tc.err); !handled {
				t.Fatal("HandleError returned false for a non-nil error")
			}
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestHandleErrorNil(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	if HandleError(c, nil) {
		t.Error("HandleError handled a nil error")
	}
}
