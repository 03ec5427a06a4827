package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/repositories"
	"github.com/campus-events/attendance-service/internal/services"
	"github.com/campus-events/attendance-service/internal/utils"
	"github.com/campus-events/attendance-service/internal/validator"
)

type AttendanceHandler struct {
	BaseHandler
	attendanceService services.AttendanceService
	reportingService  services.ReportingService
	validator         *validator.Validator
}

func NewAttendanceHandler(
	attendanceService services.AttendanceService,
	reportingService services.ReportingService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttendanceHandler {
	return &AttendanceHandler{
		BaseHandler:       NewBaseHandler(logger),
		attendanceService: attendanceService,
		reportingService:  reportingService,
		validator:         validator,
	}
}

// MarkAttendance records one scan.
// @Summary Mark attendance
// @Description Records a scan; a same-day repeat returns 409 with the first scan time
// @Tags attendance
// @Accept json
// @Produce json
// @Param scan body validator.MarkAttendanceRequest true "Scan data"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.DuplicateScanResponse
// @Router /attendance/mark [post]
func (h *AttendanceHandler) MarkAttendance(c *gin.Context) {
	h.LogRequest(c, "Marking attendance")

	var req validator.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.attendanceService.Mark(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.writeScanResult(c, result)
}

// writeScanResult maps the reconcile outcome onto the HTTP contract shared
// by the mark and scan endpoints.
func (h *AttendanceHandler) writeScanResult(c *gin.Context, result *services.ScanResult) {
	switch result.Outcome {
	case services.OutcomeAccepted:
		c.JSON(http.StatusCreated, models.SuccessResponse{
			Success: true,
			Message: "Attendance marked successfully",
			Data:    result.Record,
		})
	case services.OutcomeDuplicate:
		resp := models.DuplicateScanResponse{
			Success:        false,
			Message:        "Attendance already marked for today",
			AlreadyScanned: true,
		}
		if result.FirstScanTime != nil {
			resp.FirstScanTime = *result.FirstScanTime
		}
		c.JSON(http.StatusConflict, resp)
	case services.OutcomeUserNotFound:
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Message: "User not found",
		})
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Message: "Invalid scan payload",
			Details: invalidPayloadDetails(result),
		})
	}
}

// CheckDuplicate answers the client-side pre-check.
// @Summary Check duplicate scan
// @Tags attendance
// @Produce json
// @Param userId query string true "User ID"
// @Param scanDate query string true "Scan date (YYYY-MM-DD)"
// @Success 200 {object} models.DuplicateCheckResponse
// @Router /attendance/check-duplicate [get]
func (h *AttendanceHandler) CheckDuplicate(c *gin.Context) {
	userID := c.Query("userId")
	scanDate := c.Query("scanDate")

	resp, err := h.attendanceService.CheckDuplicate(c.Request.Context(), userID, scanDate)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRecords lists attendance records with filters and paging.
// @Summary List attendance records
// @Tags attendance
// @Produce json
// @Success 200 {object} models.RecordListResponse
// @Router /attendance/records [get]
func (h *AttendanceHandler) GetRecords(c *gin.Context) {
	h.LogRequest(c, "Listing attendance records")

	var req validator.RecordsFilterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	filters := filtersFromRequest(&req)
	filters.Limit = parseIntQuery(c, "limit", 100)
	filters.Offset = parseIntQuery(c, "offset", 0)
	filters.SortOrder = c.DefaultQuery("sort", "desc")

	records, total, err := h.reportingService.Records(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RecordListResponse{
		Success: true,
		Count:   int(total),
		Data:    records,
	})
}

// GetSummary reports one day's totals broken down by faculty.
// @Summary Attendance summary
// @Tags attendance
// @Produce json
// @Success 200 {object} models.SummaryResponse
// @Router /attendance/summary [get]
func (h *AttendanceHandler) GetSummary(c *gin.Context) {
	scanDate := c.Query("scanDate")
	eventID := c.Query("eventId")

	summary, err := h.reportingService.Summary(c.Request.Context(), scanDate, eventID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SummaryResponse{
		Success: true,
		Summary: *summary,
	})
}

// GetStudentHistory returns one student's attendance history.
// @Summary Student attendance history
// @Tags attendance
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} models.RecordListResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /attendance/student/{user_id} [get]
func (h *AttendanceHandler) GetStudentHistory(c *gin.Context) {
	userID := c.Param("user_id")
	h.LogRequest(c, "Loading student history", "user_id", userID)

	records, err := h.reportingService.StudentHistory(
		c.Request.Context(), userID, c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RecordListResponse{
		Success: true,
		Count:   len(records),
		Data:    records,
	})
}

// GetAttendees lists everyone scanned on a day, in scan order.
// @Summary List attendees for a day
// @Tags attendance
// @Produce json
// @Success 200 {object} models.RecordListResponse
// @Router /attendance/attendees [get]
func (h *AttendanceHandler) GetAttendees(c *gin.Context) {
	scanDate := c.Query("scanDate")
	eventID := c.Query("eventId")

	records, err := h.reportingService.Attendees(c.Request.Context(), scanDate, eventID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	date := scanDate
	if date == "" && len(records) > 0 {
		date = records[0].ScanDate
	}

	c.JSON(http.StatusOK, models.RecordListResponse{
		Success: true,
		Count:   len(records),
		Date:    date,
		Data:    records,
	})
}

// invalidPayloadDetails names the specific fields (or parse error) behind an
// invalid_payload rejection, falling back to the bare reason tag.
func invalidPayloadDetails(result *services.ScanResult) string {
	if result.InvalidDetail == "" {
		return result.InvalidReason
	}
	return result.InvalidReason + ": " + result.InvalidDetail
}

func filtersFromRequest(req *validator.RecordsFilterRequest) repositories.AttendanceFilters {
	filters := repositories.AttendanceFilters{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		EventID:   req.EventID,
	}
	if req.Faculty != "" {
		faculty := models.Faculty(req.Faculty)
		filters.Faculty = &faculty
	}
	return filters
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := c.Query(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
