package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/services"
	"github.com/campus-events/attendance-service/internal/utils"
)

// BaseHandler provides shared helpers for all handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs the start of a handler with request-scoped fields.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	fields := append([]any{"method", c.Request.Method, "path", c.Request.URL.Path}, args...)
	h.logger.Info(msg, fields...)
}

// handleServiceError maps service errors onto HTTP status codes. Duplicate
// scans never arrive here; they are a normal ScanResult variant handled in
// the calling handler.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var invalidPayload *services.InvalidPayloadError
	switch {
	case errors.As(err, &invalidPayload):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Message: "Invalid request",
			Details: invalidPayload.Error(),
		})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Message: "User not found",
		})
	case errors.Is(err, services.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Message: "Attendance record not found",
		})
	case errors.Is(err, services.ErrNoRecordsFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Message: "No attendance records found for the specified criteria",
		})
	case errors.Is(err, services.ErrWorkbookNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Message: "Workbook not found",
		})
	case errors.Is(err, services.ErrLedgerTimeout):
		// Outcome unknown; the client may retry safely.
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Message: "Attendance store timed out, please retry",
		})
	case errors.Is(err, services.ErrMirrorUnavailable):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Message: "Excel mirror unavailable",
		})
	default:
		h.logger.Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Message: "Internal server error",
		})
	}
}
