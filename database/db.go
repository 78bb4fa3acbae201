package database

import (
	"fmt"
	"os"

	"workshop-tracker/logger"
	"workshop-tracker/models/gatepass"
	"workshop-tracker/models/log"
	"workshop-tracker/models/user"
	"workshop-tracker/models/vehicle"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB initializes the database connection with auto migration and indexing
func InitDB() (*gorm.DB, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logger.Error("Error loading .env file", err)
	}

	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_DATABASE")
	username := os.Getenv("DB_USERNAME")
	password := os.Getenv("DB_PASSWORD")
	sslmode := os.Getenv("DB_SSLMODE")

	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, username, password, database, sslmode)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to the database", err)
		return nil, err
	}
	logger.Success("Successfully connected to the database")

	if err := autoMigrate(); err != nil {
		logger.Error("Failed to run migrations", err)
		return nil, err
	}
	logger.Success("All migrations completed successfully")

	if err := createForeignKeyConstraints(); err != nil {
		logger.Error("Failed to create foreign key constraints", err)
		return nil, err
	}
	logger.Success("All foreign key constraints created successfully")

	if err := createIndexes(); err != nil {
		logger.Error("Failed to create indexes", err)
		return nil, err
	}
	logger.Success("All indexes created successfully")

	return DB, nil
}

// autoMigrate runs auto migration for all models in dependency order
func autoMigrate() error {
	// Stage 1: Core foundation models
	stage1Models := []interface{}{
		&user.User{},
		&vehicle.Visit{},
	}

	for _, model := range stage1Models {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 2: Models with dependencies on Stage 1
	stage2Models := []interface{}{
		&vehicle.StageEvent{},
	}

	for _, model := range stage2Models {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	// Stage 3: Remaining models
	remainingModels := []interface{}{
		&log.Log{},
		&gatepass.GatePassScan{},
	}

	for _, model := range remainingModels {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	return nil
}

// createIndexes creates additional indexes for better performance
func createIndexes() error {
	// User indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_uuid ON users(uuid)").Error; err != nil {
		return fmt.Errorf("failed to create user uuid index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_mobile ON users(mobile)").Error; err != nil {
		return fmt.Errorf("failed to create user mobile index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)").Error; err != nil {
		return fmt.Errorf("failed to create user role index: %w", err)
	}

	// Visit indexes: the open-visit lookup hits (vehicle_number, exit_time)
	// on every scan.
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visits_vehicle_number ON visits(vehicle_number)").Error; err != nil {
		return fmt.Errorf("failed to create visit vehicle_number index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visits_open ON visits(vehicle_number, exit_time)").Error; err != nil {
		return fmt.Errorf("failed to create visit open-lookup index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visits_tracking_token ON visits(tracking_token)").Error; err != nil {
		return fmt.Errorf("failed to create visit tracking_token index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_visits_entry_time ON visits(entry_time)").Error; err != nil {
		return fmt.Errorf("failed to create visit entry_time index: %w", err)
	}

	// Stage event indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_stage_events_visit_id ON stage_events(visit_id)").Error; err != nil {
		return fmt.Errorf("failed to create stage_event visit_id index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_stage_events_stage_name ON stage_events(stage_name)").Error; err != nil {
		return fmt.Errorf("failed to create stage_event stage_name index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_stage_events_timestamp ON stage_events(timestamp)").Error; err != nil {
		return fmt.Errorf("failed to create stage_event timestamp index: %w", err)
	}

	// Log indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_logs_status_code ON logs(status_code)").Error; err != nil {
		return fmt.Errorf("failed to create log status_code index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at)").Error; err != nil {
		return fmt.Errorf("failed to create log created_at index: %w", err)
	}

	// Gate pass scan indexes
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_gate_pass_scans_request_id ON gate_pass_scans(request_id)").Error; err != nil {
		return fmt.Errorf("failed to create gate_pass_scan request_id index: %w", err)
	}
	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_gate_pass_scans_status ON gate_pass_scans(status)").Error; err != nil {
		return fmt.Errorf("failed to create gate_pass_scan status index: %w", err)
	}

	return nil
}

// createForeignKeyConstraints creates foreign key constraints after auto migration
func createForeignKeyConstraints() error {
	constraints := []struct {
		name string
		sql  string
	}{
		{
			name: "fk_stage_events_visit",
			sql: `ALTER TABLE stage_events ADD CONSTRAINT fk_stage_events_visit
				  FOREIGN KEY (visit_id) REFERENCES visits(id)
				  ON UPDATE CASCADE ON DELETE CASCADE`,
		},
	}

	for _, constraint := range constraints {
		var exists bool
		checkSQL := `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.table_constraints
				WHERE constraint_name = $1
			)
		`

		err := DB.Raw(checkSQL, constraint.name).Scan(&exists).Error
		if err != nil {
			logger.Warning(fmt.Sprintf("Failed to check constraint existence: %s - Error: %v", constraint.name, err))
			continue
		}

		if !exists {
			if err := DB.Exec(constraint.sql).Error; err != nil {
				logger.Warning(fmt.Sprintf("Failed to create constraint: %s - Error: %v", constraint.name, err))
			} else {
				logger.Success(fmt.Sprintf("Successfully created constraint: %s", constraint.name))
			}
		}
	}

	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
