package routes

import (
	"workshop-tracker/constants"
	"workshop-tracker/controllers/auth"
	"workshop-tracker/controllers/dashboard"
	"workshop-tracker/controllers/gatepass"
	"workshop-tracker/controllers/vehicle"
	"workshop-tracker/logger"
	"workshop-tracker/middleware"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	asyncLogger := logger.NewAsyncLogger(db)
	authController := auth.NewAuthController(db, asyncLogger)
	vehicleController := vehicle.NewVehicleController(db, asyncLogger)
	dashboardController := dashboard.NewDashboardController(db, asyncLogger)
	gatePassController := gatepass.NewGatePassController(db, asyncLogger)

	// Start the async logger processing goroutine
	go asyncLogger.ProcessLog()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "workshop-tracker",
			"status":  "ok",
		})
	})

	/*=============================================================================
	| Public Routes
	===============================================================================*/
	api := app.Group("/api")
	api.Post("/register", authController.Register)
	api.Post("/login", authController.Login)
	api.Get("/track/:token", vehicleController.TrackVehicle)

	/*=============================================================================
	| Protected Routes
	===============================================================================*/
	api.Use(middleware.IsAuthenticated())
	api.Post("/logout", authController.LogOut)
	api.Get("/profile", authController.Profile)
	api.Get("/users", middleware.RequireRoles(constants.RoleAdmin), authController.ListUsers)
	api.Delete("/users/:id", middleware.RequireRoles(constants.RoleAdmin), authController.DeleteUser)
	api.Post("/admin/add-user", middleware.RequireRoles(constants.RoleAdmin), authController.AddUser)

	/*=============================================================================
	| Vehicle Routes
	===============================================================================*/
	api.Post("/vehicle-check", vehicleController.VehicleCheck)
	api.Get("/bay-work-status", vehicleController.BayWorkStatus)
	api.Get("/vehicles", vehicleController.GetVehicles)
	api.Get("/vehicles/:vehicleNumber", vehicleController.GetVehicleByNumber)
	api.Get("/user-vehicles", vehicleController.GetUserVehicles)

	/*=============================================================================
	| Dashboard Routes
	===============================================================================*/
	api.Get("/vehicle-stage-summary", dashboardController.StageSummary)
	api.Get("/vehiclesDetails", dashboardController.VehicleDetails)

	dash := api.Group("/dashboard")
	dash.Get("/live-status", dashboardController.LiveStatus)
	dash.Get("/vehicle-count", dashboardController.VehicleCount)
	dash.Get("/average-time", dashboardController.AverageTime)
	dash.Get("/vehicle-report/:vehicleNumber", dashboardController.VehicleReport)
	dash.Get("/all-vehicles", dashboardController.AllVehicles)

	/*=============================================================================
	| Gate Pass Routes
	===============================================================================*/
	api.Post("/gate-pass/parse", middleware.RequireRoles(
		constants.RoleSecurityGuard, constants.RoleAdmin,
	), gatePassController.Parse)
}
