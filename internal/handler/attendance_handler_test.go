package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/coach-enroll-api/internal/service"
	"github.com/noah-isme/coach-enroll-api/pkg/storage"
)

func TestAttendanceHandlerMarkRejectsBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(service.NewAttendanceService(nil, nil, nil, nil, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "sessionId", Value: "occ-1"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/sessions/occ-1/attendance", strings.NewReader("{"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Mark(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAttendanceHandlerMarkRejectsUnknownStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAttendanceHandler(service.NewAttendanceService(nil, nil, nil, nil, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Params = gin.Params{{Key: "sessionId", Value: "occ-1"}}
	c.Request = httptest.NewRequest(http.MethodPut, "/sessions/occ-1/attendance", strings.NewReader(`{"status":"paused"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Mark(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlerDownloadRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	handler := NewExportHandler(service.NewExportService(nil, nil, nil, signer, nil, nil, nil))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/exports/download?token=bogus", nil)

	handler.Download(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsHandlerHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	handler.Health(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}
