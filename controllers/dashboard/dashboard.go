package dashboard

import (
	"time"

	"workshop-tracker/logger"
	vehicleModel "workshop-tracker/models/vehicle"
	"workshop-tracker/services/stageflow"
	"workshop-tracker/types"
	"workshop-tracker/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *logger.AsyncLogger
}

func NewDashboardController(db *gorm.DB, asyncLogger *logger.AsyncLogger) *DashboardController {
	return &DashboardController{DB: db, Logger: asyncLogger}
}

func (dc *DashboardController) logAPIRequest(c *fiber.Ctx) {
	dc.Logger.Log(utils.CreateSanitizedLogEntry(c))
}

func (dc *DashboardController) sendResponseWithLog(c *fiber.Ctx, status int, response types.ApiResponse) error {
	result := c.Status(status).JSON(response)
	dc.logAPIRequest(c)
	return result
}

func (dc *DashboardController) openVisits() ([]vehicleModel.Visit, error) {
	var visits []vehicleModel.Visit
	err := dc.DB.
		Where("exit_time IS NULL AND entry_time IS NOT NULL").
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		}).
		Order("entry_time ASC").
		Find(&visits).Error
	return visits, err
}

func (dc *DashboardController) visitsInRange(filter string, ref time.Time) ([]vehicleModel.Visit, error) {
	start, end := utils.DateRange(filter, ref)
	var visits []vehicleModel.Visit
	err := dc.DB.
		Where("entry_time BETWEEN ? AND ?", start, end).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		}).
		Order("entry_time DESC").
		Find(&visits).Error
	return visits, err
}

// LiveStatus lists every vehicle currently on premises with its open stages.
func (dc *DashboardController) LiveStatus(c *fiber.Ctx) error {
	visits, err := dc.openVisits()
	if err != nil {
		logger.Error("Failed to load open visits", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to load live status",
			Status:  fiber.StatusInternalServerError,
		})
	}

	now := time.Now()
	rows := make([]map[string]interface{}, len(visits))
	for i := range visits {
		v := &visits[i]
		rows[i] = map[string]interface{}{
			"vehicleNumber": v.VehicleNumber,
			"entryTime":     v.EntryTime,
			"activeStages":  stageflow.ActiveStages(v.Stages, now),
		}
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Live status fetched successfully",
		Status:  fiber.StatusOK,
		Data:    rows,
	})
}

// StageSummary counts on-premises vehicles per active stage name.
func (dc *DashboardController) StageSummary(c *fiber.Ctx) error {
	visits, err := dc.openVisits()
	if err != nil {
		logger.Error("Failed to load open visits", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to load stage summary",
			Status:  fiber.StatusInternalServerError,
		})
	}

	now := time.Now()
	summary := map[string]int{}
	for i := range visits {
		for _, st := range stageflow.ActiveStages(visits[i].Stages, now) {
			summary[st.StageName]++
		}
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Stage summary fetched successfully",
		Status:  fiber.StatusOK,
		Data: map[string]interface{}{
			"totalVehicles": len(visits),
			"stages":        summary,
		},
	})
}

// VehicleDetails lists open visits with per-session timing breakdowns.
func (dc *DashboardController) VehicleDetails(c *fiber.Ctx) error {
	visits, err := dc.openVisits()
	if err != nil {
		logger.Error("Failed to load open visits", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to load vehicle details",
			Status:  fiber.StatusInternalServerError,
		})
	}

	now := time.Now()
	rows := make([]map[string]interface{}, len(visits))
	for i := range visits {
		v := &visits[i]
		sessions := stageflow.WorkSessions(v.Stages, now)
		formatted := make([]map[string]interface{}, len(sessions))
		for j, s := range sessions {
			formatted[j] = map[string]interface{}{
				"stageName": s.StageName,
				"role":      s.Role,
				"startedAt": s.StartedAt,
				"endedAt":   s.EndedAt,
				"active":    s.Active,
				"paused":    s.Paused,
				"working":   utils.FormatMs(s.WorkingMs),
				"pausedFor": utils.FormatMs(s.PausedMs),
			}
		}
		rows[i] = map[string]interface{}{
			"vehicleNumber": v.VehicleNumber,
			"entryTime":     v.EntryTime,
			"activeStages":  stageflow.ActiveStages(v.Stages, now),
			"sessions":      formatted,
		}
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicle details fetched successfully",
		Status:  fiber.StatusOK,
		Data:    rows,
	})
}

// VehicleCount reports entered/exited/on-premises counts for a period.
func (dc *DashboardController) VehicleCount(c *fiber.Ctx) error {
	filter := c.Query("dateFilter", "today")
	now := time.Now()
	start, end := utils.DateRange(filter, now)

	var entered, exited, onPremises int64
	if err := dc.DB.Model(&vehicleModel.Visit{}).
		Where("entry_time BETWEEN ? AND ?", start, end).
		Count(&entered).Error; err != nil {
		logger.Error("Failed to count entries", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to count vehicles",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if err := dc.DB.Model(&vehicleModel.Visit{}).
		Where("exit_time BETWEEN ? AND ?", start, end).
		Count(&exited).Error; err != nil {
		logger.Error("Failed to count exits", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to count vehicles",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if err := dc.DB.Model(&vehicleModel.Visit{}).
		Where("exit_time IS NULL AND entry_time IS NOT NULL").
		Count(&onPremises).Error; err != nil {
		logger.Error("Failed to count open visits", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to count vehicles",
			Status:  fiber.StatusInternalServerError,
		})
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicle count fetched successfully",
		Status:  fiber.StatusOK,
		Data: map[string]interface{}{
			"dateFilter": filter,
			"from":       start,
			"to":         end,
			"entered":    entered,
			"exited":     exited,
			"onPremises": onPremises,
		},
	})
}

// AverageTime reports per-family average working durations for a period.
func (dc *DashboardController) AverageTime(c *fiber.Ctx) error {
	filter := c.Query("dateFilter", "today")
	now := time.Now()

	visits, err := dc.visitsInRange(filter, now)
	if err != nil {
		logger.Error("Failed to load visits for averages", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to compute averages",
			Status:  fiber.StatusInternalServerError,
		})
	}

	averages := stageflow.AverageDurations(visits, now)
	formatted := make(map[string]string, len(averages))
	for family, ms := range averages {
		formatted[family] = utils.FormatMs(ms)
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Average stage durations fetched successfully",
		Status:  fiber.StatusOK,
		Data: map[string]interface{}{
			"dateFilter": filter,
			"averagesMs": averages,
			"averages":   formatted,
		},
	})
}

// VehicleReport returns every visit of one vehicle with total on-premises
// time per visit.
func (dc *DashboardController) VehicleReport(c *fiber.Ctx) error {
	vehicleNumber := stageflow.NormalizeVehicleNumber(c.Params("vehicleNumber"))

	var visits []vehicleModel.Visit
	if err := dc.DB.
		Where("vehicle_number = ?", vehicleNumber).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		}).
		Order("created_at DESC").
		Find(&visits).Error; err != nil {
		logger.Error("Failed to load vehicle report", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to load vehicle report",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if len(visits) == 0 {
		return dc.sendResponseWithLog(c, fiber.StatusNotFound, types.ApiResponse{
			Message: "Vehicle not found",
			Status:  fiber.StatusNotFound,
		})
	}

	now := time.Now()
	rows := make([]map[string]interface{}, len(visits))
	for i := range visits {
		v := &visits[i]
		rows[i] = map[string]interface{}{
			"visit":     v,
			"totalTime": utils.FormatMs(visitDurationMs(v, now)),
			"sessions":  stageflow.WorkSessions(v.Stages, now),
		}
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicle report fetched successfully",
		Status:  fiber.StatusOK,
		Data:    rows,
	})
}

// AllVehicles lists visits in a period with their total on-premises time.
func (dc *DashboardController) AllVehicles(c *fiber.Ctx) error {
	filter := c.Query("dateFilter", "today")
	now := time.Now()

	visits, err := dc.visitsInRange(filter, now)
	if err != nil {
		logger.Error("Failed to load visits", err)
		return dc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to list vehicles",
			Status:  fiber.StatusInternalServerError,
		})
	}

	rows := make([]map[string]interface{}, len(visits))
	for i := range visits {
		v := &visits[i]
		rows[i] = map[string]interface{}{
			"vehicleNumber": v.VehicleNumber,
			"entryTime":     v.EntryTime,
			"exitTime":      v.ExitTime,
			"open":          v.Open(),
			"totalTime":     utils.FormatMs(visitDurationMs(v, now)),
		}
	}

	return dc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicles fetched successfully",
		Status:  fiber.StatusOK,
		Data: map[string]interface{}{
			"dateFilter": filter,
			"count":      len(rows),
			"vehicles":   rows,
		},
	})
}

// visitDurationMs is the visit's wall-clock time on premises, up to now for
// open visits. Visits without an entry time (bare N-1 shells) report -1.
func visitDurationMs(v *vehicleModel.Visit, now time.Time) int64 {
	if v.EntryTime == nil {
		return -1
	}
	end := now
	if v.ExitTime != nil {
		end = *v.ExitTime
	}
	return end.Sub(*v.EntryTime).Milliseconds()
}
