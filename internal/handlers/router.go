package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/campus-events/attendance-service/internal/config"
	"github.com/campus-events/attendance-service/internal/models"
	"github.com/campus-events/attendance-service/internal/services"
	"github.com/campus-events/attendance-service/internal/utils"
	"github.com/campus-events/attendance-service/internal/validator"
)

type HandlerManager struct {
	attendanceHandler *AttendanceHandler
	exportHandler     *ExportHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
) *HandlerManager {
	return &HandlerManager{
		attendanceHandler: NewAttendanceHandler(serviceManager.Attendance(), serviceManager.Reporting(), validator, logger),
		exportHandler:     NewExportHandler(serviceManager.Attendance(), serviceManager.Mirror(), validator, logger),
		authMiddleware:    NewCasdoorAuthMiddleware(casdoorConfig),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		attendance := v1.Group("/attendance")
		{
			// Scan-station endpoints - any authenticated staff
			attendance.POST("/mark", hm.attendanceHandler.MarkAttendance)
			attendance.GET("/check-duplicate", hm.attendanceHandler.CheckDuplicate)
			attendance.POST("/save-scan-excel", hm.exportHandler.SaveScanToExcel)

			// Reporting endpoints - organizers and admins
			attendance.GET("/records", hm.authMiddleware.RequireRoleMiddleware(models.RoleOrganizer), hm.attendanceHandler.GetRecords)
			attendance.GET("/summary", hm.authMiddleware.RequireRoleMiddleware(models.RoleOrganizer), hm.attendanceHandler.GetSummary)
			attendance.GET("/student/:user_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleOrganizer), hm.attendanceHandler.GetStudentHistory)
			attendance.GET("/attendees", hm.authMiddleware.RequireRoleMiddleware(models.RoleOrganizer), hm.attendanceHandler.GetAttendees)

			// Workbook endpoints - organizers and admins
			attendance.GET("/export-excel", hm.authMiddleware.RequireRoleMiddleware(models.RoleOrganizer), hm.exportHandler.ExportExcel)
			attendance.GET("/excel-files", hm.authMiddleware.RequireRoleMiddleware(models.RoleOrganizer), hm.exportHandler.ListExcelFiles)
			attendance.GET("/excel-files/:filename", hm.authMiddleware.RequireRoleMiddleware(models.RoleOrganizer), hm.exportHandler.DownloadExcelFile)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "attendance-service",
		})
	})
}
