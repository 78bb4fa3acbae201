package vehicle

import (
	"errors"
	"os"
	"time"

	"workshop-tracker/logger"
	"workshop-tracker/middleware"
	vehicleModel "workshop-tracker/models/vehicle"
	"workshop-tracker/services/stageflow"
	"workshop-tracker/types"
	vehicleTypes "workshop-tracker/types/vehicle"
	"workshop-tracker/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var validate = validator.New()

type VehicleController struct {
	DB     *gorm.DB
	Logger *logger.AsyncLogger
	Flow   *stageflow.Service
}

func NewVehicleController(db *gorm.DB, asyncLogger *logger.AsyncLogger) *VehicleController {
	flow := stageflow.NewService(stageflow.NewVisitStore(db), os.Getenv("TRACKING_BASE_URL"))
	return &VehicleController{
		DB:     db,
		Logger: asyncLogger,
		Flow:   flow,
	}
}

func (vc *VehicleController) logAPIRequest(c *fiber.Ctx) {
	vc.Logger.Log(utils.CreateSanitizedLogEntry(c))
}

func (vc *VehicleController) sendResponseWithLog(c *fiber.Ctx, status int, response types.ApiResponse) error {
	result := c.Status(status).JSON(response)
	vc.logAPIRequest(c)
	return result
}

// VehicleCheck handles one stage scan. The state machine decides everything;
// this handler only translates between HTTP and the flow service.
func (vc *VehicleController) VehicleCheck(c *fiber.Ctx) error {
	var req vehicleTypes.CheckRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse vehicle-check body", err)
		return vc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Invalid request body",
			Status:  fiber.StatusBadRequest,
		})
	}

	if err := validate.Struct(req); err != nil {
		return vc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Vehicle number, stage name and event type are required.",
			Status:  fiber.StatusBadRequest,
			Data:    map[string]interface{}{"error": string(stageflow.KindValidation)},
		})
	}

	account, ok := middleware.CurrentUser(c)
	if !ok {
		return vc.sendResponseWithLog(c, fiber.StatusUnauthorized, types.ApiResponse{
			Message: "Authentication required",
			Status:  fiber.StatusUnauthorized,
		})
	}

	actor := stageflow.Actor{ID: account.ID, Name: account.Name, Role: account.Role}
	result, err := vc.Flow.Check(req, actor)
	if err != nil {
		if re, ok := stageflow.AsRuleError(err); ok {
			return vc.sendResponseWithLog(c, re.HTTPStatus(), types.ApiResponse{
				Message: re.Message,
				Status:  re.HTTPStatus(),
				Data:    map[string]interface{}{"error": string(re.Kind)},
			})
		}
		logger.Error("Vehicle check failed", err)
		return vc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to record vehicle check",
			Status:  fiber.StatusInternalServerError,
		})
	}

	status := fiber.StatusOK
	if result.Created {
		status = fiber.StatusCreated
	}
	return vc.sendResponseWithLog(c, status, types.ApiResponse{
		Success:      true,
		Message:      result.Message,
		Status:       status,
		TrackingLink: result.TrackingLink,
		Data:         result.Visit,
	})
}

// BayWorkStatus reports the state of one (workType, bayNumber) session for
// the open visit of a vehicle.
func (vc *VehicleController) BayWorkStatus(c *fiber.Ctx) error {
	vehicleNumber := stageflow.NormalizeVehicleNumber(c.Query("vehicleNumber"))
	workType := c.Query("workType")
	bayNumber := c.QueryInt("bayNumber")

	if vehicleNumber == "" || workType == "" || bayNumber == 0 {
		return vc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "vehicleNumber, workType and bayNumber are required",
			Status:  fiber.StatusBadRequest,
		})
	}
	if !vehicleModel.IsValidWorkType(workType) {
		return vc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Unknown work type",
			Status:  fiber.StatusBadRequest,
		})
	}

	visit, err := vc.openVisit(vehicleNumber)
	if err != nil {
		logger.Error("Failed to load open visit", err)
		return vc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to load vehicle",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if visit == nil {
		return vc.sendResponseWithLog(c, fiber.StatusNotFound, types.ApiResponse{
			Message: "No active vehicle entry found",
			Status:  fiber.StatusNotFound,
		})
	}

	state := stageflow.BayWorkStatus(visit.Stages, workType, bayNumber)
	return vc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Bay work status fetched successfully",
		Status:  fiber.StatusOK,
		Data:    state,
	})
}

// GetVehicles lists visits, newest first, optionally narrowed to a
// dateFilter window on entry time.
func (vc *VehicleController) GetVehicles(c *fiber.Ctx) error {
	query := vc.DB.Preload("Stages", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp ASC, id ASC")
	}).Order("updated_at DESC")

	if filter := c.Query("dateFilter"); filter != "" {
		start, end := utils.DateRange(filter, time.Now())
		query = query.Where("entry_time BETWEEN ? AND ?", start, end)
	}

	var visits []vehicleModel.Visit
	if err := query.Find(&visits).Error; err != nil {
		logger.Error("Failed to list visits", err)
		return vc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to list vehicles",
			Status:  fiber.StatusInternalServerError,
		})
	}

	return vc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicles fetched successfully",
		Status:  fiber.StatusOK,
		Data:    visits,
	})
}

// GetVehicleByNumber returns the latest visit for a vehicle together with its
// derived active stages.
func (vc *VehicleController) GetVehicleByNumber(c *fiber.Ctx) error {
	vehicleNumber := stageflow.NormalizeVehicleNumber(c.Params("vehicleNumber"))

	var visit vehicleModel.Visit
	err := vc.DB.
		Where("vehicle_number = ?", vehicleNumber).
		Order("created_at DESC").
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		}).
		First(&visit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return vc.sendResponseWithLog(c, fiber.StatusNotFound, types.ApiResponse{
			Message: "Vehicle not found",
			Status:  fiber.StatusNotFound,
		})
	}
	if err != nil {
		logger.Error("Failed to load vehicle", err)
		return vc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to load vehicle",
			Status:  fiber.StatusInternalServerError,
		})
	}

	now := time.Now()
	return vc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicle fetched successfully",
		Status:  fiber.StatusOK,
		Data: map[string]interface{}{
			"visit":        visit,
			"activeStages": stageflow.ActiveStages(visit.Stages, now),
			"sessions":     stageflow.WorkSessions(visit.Stages, now),
		},
	})
}

// GetUserVehicles lists visits the authenticated user has touched.
func (vc *VehicleController) GetUserVehicles(c *fiber.Ctx) error {
	account, ok := middleware.CurrentUser(c)
	if !ok {
		return vc.sendResponseWithLog(c, fiber.StatusUnauthorized, types.ApiResponse{
			Message: "Authentication required",
			Status:  fiber.StatusUnauthorized,
		})
	}

	var visitIDs []uint
	if err := vc.DB.Model(&vehicleModel.StageEvent{}).
		Where("performed_by_id = ?", account.ID).
		Distinct("visit_id").
		Pluck("visit_id", &visitIDs).Error; err != nil {
		logger.Error("Failed to resolve user visits", err)
		return vc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to list vehicles",
			Status:  fiber.StatusInternalServerError,
		})
	}

	var visits []vehicleModel.Visit
	if len(visitIDs) > 0 {
		if err := vc.DB.Where("id IN ?", visitIDs).
			Preload("Stages", func(db *gorm.DB) *gorm.DB {
				return db.Order("timestamp ASC, id ASC")
			}).
			Order("updated_at DESC").
			Find(&visits).Error; err != nil {
			logger.Error("Failed to list user visits", err)
			return vc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
				Message: "Failed to list vehicles",
				Status:  fiber.StatusInternalServerError,
			})
		}
	}

	return vc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicles fetched successfully",
		Status:  fiber.StatusOK,
		Data:    visits,
	})
}

// trackedEvent is the customer-visible slice of a stage event. Staff identity
// stays internal.
type trackedEvent struct {
	StageName string    `json:"stageName"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// TrackVehicle is the public tracking lookup handed to customers during the
// N-1 call. It exposes progress only.
func (vc *VehicleController) TrackVehicle(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return vc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Tracking token is required",
			Status:  fiber.StatusBadRequest,
		})
	}

	var visit vehicleModel.Visit
	err := vc.DB.
		Where("tracking_token = ?", token).
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		}).
		First(&visit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return vc.sendResponseWithLog(c, fiber.StatusNotFound, types.ApiResponse{
			Message: "Tracking link not found",
			Status:  fiber.StatusNotFound,
		})
	}
	if err != nil {
		logger.Error("Failed to resolve tracking token", err)
		return vc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to resolve tracking link",
			Status:  fiber.StatusInternalServerError,
		})
	}

	history := make([]trackedEvent, len(visit.Stages))
	for i, e := range visit.Stages {
		history[i] = trackedEvent{
			StageName: e.StageName,
			EventType: string(e.EventType),
			Timestamp: e.Timestamp,
		}
	}

	now := time.Now()
	return vc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Vehicle status fetched successfully",
		Status:  fiber.StatusOK,
		Data: map[string]interface{}{
			"vehicleNumber": visit.VehicleNumber,
			"entryTime":     visit.EntryTime,
			"exitTime":      visit.ExitTime,
			"activeStages":  stageflow.ActiveStages(visit.Stages, now),
			"history":       history,
		},
	})
}

func (vc *VehicleController) openVisit(vehicleNumber string) (*vehicleModel.Visit, error) {
	return stageflow.NewVisitStore(vc.DB).FindOpenVisit(vehicleNumber)
}
