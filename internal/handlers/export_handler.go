package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/services"
	"github.com/campus-events/attendance-service/internal/utils"
	"github.com/campus-events/attendance-service/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportHandler struct {
	BaseHandler
	attendanceService services.AttendanceService
	mirrorService     services.MirrorService
	validator         *validator.Validator
}

func NewExportHandler(
	attendanceService services.AttendanceService,
	mirrorService services.MirrorService,
	validator *validator.Validator,
	logger utils.Logger,
) *ExportHandler {
	return &ExportHandler{
		BaseHandler:       NewBaseHandler(logger),
		attendanceService: attendanceService,
		mirrorService:     mirrorService,
		validator:         validator,
	}
}

// SaveScanToExcel records a scan in the ledger and mirrors it to the day's
// workbook in one call.
// @Summary Save scan to ledger and Excel mirror
// @Tags export
// @Accept json
// @Produce json
// @Param scan body validator.MarkAttendanceRequest true "Scan data"
// @Success 201 {object} models.SuccessResponse
// @Failure 409 {object} models.DuplicateScanResponse
// @Router /attendance/save-scan-excel [post]
func (h *ExportHandler) SaveScanToExcel(c *gin.Context) {
	h.LogRequest(c, "Saving scan to ledger and mirror")

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

	if !result.Accepted() {
		switch result.Outcome {
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
		return
	}

	// The ledger write is committed; a mirror failure must not undo it.
	mirror, err := h.mirrorService.AppendOrReject(c.Request.Context(), result.Record)
	if err != nil {
		h.logger.Warn("Mirror append failed after ledger commit",
			"record_id", result.Record.ID, "error", err)
		c.JSON(http.StatusCreated, models.SuccessResponse{
			Success: true,
			Message: "Attendance marked; Excel mirror update failed",
			Data:    result.Record,
		})
		return
	}

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Message: "Attendance marked and saved to Excel",
		Data: gin.H{
			"record": result.Record,
			"mirror": mirror,
		},
	})
}

// ExportExcel streams a freshly built workbook from the ledger.
// @Summary Export attendance to Excel
// @Tags export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /attendance/export-excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	h.LogRequest(c, "Exporting attendance workbook")

	var req validator.ExportRequest
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

	f, filename, err := h.mirrorService.ExportFiltered(
		c.Request.Context(), filtersFromRequest(&req.RecordsFilterRequest), req.Format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("Failed to stream workbook", "error", err)
	}
}

// ListExcelFiles lists the stored mirror workbooks.
// @Summary List mirror workbooks
// @Tags export
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /attendance/excel-files [get]
func (h *ExportHandler) ListExcelFiles(c *gin.Context) {
	workbooks, err := h.mirrorService.ListWorkbooks()
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    workbooks,
	})
}

// DownloadExcelFile serves one stored workbook by filename.
// @Summary Download a mirror workbook
// @Tags export
// @Param filename path string true "Workbook filename"
// @Router /attendance/excel-files/{filename} [get]
func (h *ExportHandler) DownloadExcelFile(c *gin.Context) {
	filename := c.Param("filename")

	path, err := h.mirrorService.WorkbookPath(filename)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.File(path)
}
