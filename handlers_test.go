package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// Error responses from the export route must stay plain JSON; the xlsx
// attachment headers belong to successful builds only.
func TestExportReportErrorResponseIsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/reports/:report/export", exportReportHandler())

	req := httptest.NewRequest(http.MethodGet, "/reports/profit-and-loss/export?granularity=month&year=2025&month=2", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "" {
		t.Errorf("error response carries attachment header %q", cd)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("error response Content-Type = %q, want application/json", ct)
	}
}
