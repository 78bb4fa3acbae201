package gatepass

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"workshop-tracker/logger"
	gatepassModel "workshop-tracker/models/gatepass"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Service handles gate-pass scan bookkeeping: request records, file storage
// and result persistence. Everything off the response path runs async.
type Service struct {
	DB        *gorm.DB
	UploadDir string
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		DB:        db,
		UploadDir: "uploaded_gate_passes",
	}
}

// GenerateRequestID generates a 24 character unique request ID.
func (s *Service) GenerateRequestID() string {
	bytes := make([]byte, 12)
	rand.Read(bytes)
	requestID := hex.EncodeToString(bytes)

	timestamp := time.Now().Unix()
	return fmt.Sprintf("%06x%s", timestamp&0xffffff, requestID[:18])
}

// CreateInitialRequest creates the processing record before parsing starts.
func (s *Service) CreateInitialRequest(c *fiber.Ctx, requestID, originalFileName string, fileSize int64, mimeType string) (*gatepassModel.GatePassScan, error) {
	ipAddress := c.IP()
	if ipAddress == "" {
		ipAddress = "unknown"
	}

	scan := &gatepassModel.GatePassScan{
		RequestID:        requestID,
		OriginalFileName: originalFileName,
		FileSize:         fileSize,
		MimeType:         mimeType,
		Status:           "processing",
		IPAddress:        ipAddress,
	}

	if err := s.DB.Create(scan).Error; err != nil {
		return nil, fmt.Errorf("failed to create initial request: %w", err)
	}
	return scan, nil
}

// SaveFileAsync persists the uploaded image without blocking the response.
func (s *Service) SaveFileAsync(requestID string, fileBytes []byte, originalFileName string) {
	go func() {
		if err := s.saveFile(requestID, fileBytes, originalFileName); err != nil {
			logger.Error(fmt.Sprintf("Failed to save file for request %s", requestID), err)
			s.markFileError(requestID, err.Error())
		}
	}()
}

func (s *Service) saveFile(requestID string, fileBytes []byte, originalFileName string) error {
	if err := s.ensureUploadDir(); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	hash := sha256.Sum256(fileBytes)
	fileHash := hex.EncodeToString(hash[:])

	ext := filepath.Ext(originalFileName)
	savedFileName := fmt.Sprintf("%s_%d%s", requestID, time.Now().Unix(), ext)
	filePath := filepath.Join(s.UploadDir, savedFileName)

	if err := os.WriteFile(filePath, fileBytes, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Success(fmt.Sprintf("Gate pass image saved for request %s: %s (sha256 %s)", requestID, savedFileName, fileHash[:12]))
	return nil
}

// SaveSuccessResultAsync stores the parsed fields off the response path.
func (s *Service) SaveSuccessResultAsync(requestID, vehicleNumber string, inKM *float64, inDriver *string, raw string, elapsedMs int64) {
	go func() {
		scan, err := s.GetRequestByID(requestID)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to find request %s", requestID), err)
			return
		}
		if err := scan.MarkSuccess(s.DB, vehicleNumber, inKM, inDriver, raw, elapsedMs); err != nil {
			logger.Error(fmt.Sprintf("Failed to save success result for request %s", requestID), err)
			return
		}
		logger.Success(fmt.Sprintf("Gate pass parsed successfully for request %s", requestID))
	}()
}

// SaveFailureResultAsync records the failure reason off the response path.
func (s *Service) SaveFailureResultAsync(requestID, errorMsg string, elapsedMs int64) {
	go func() {
		scan, err := s.GetRequestByID(requestID)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to find request %s", requestID), err)
			return
		}
		if err := scan.MarkFailed(s.DB, errorMsg, elapsedMs); err != nil {
			logger.Error(fmt.Sprintf("Failed to save failure result for request %s", requestID), err)
			return
		}
		logger.Info(fmt.Sprintf("Failure result saved for request %s: %s", requestID, errorMsg))
	}()
}

func (s *Service) markFileError(requestID, errorMsg string) {
	errorMessage := fmt.Sprintf("File saving error: %s", errorMsg)
	updates := map[string]interface{}{
		"status":        "failed",
		"error_message": errorMessage,
	}
	if err := s.DB.Model(&gatepassModel.GatePassScan{}).Where("request_id = ?", requestID).Updates(updates).Error; err != nil {
		logger.Error(fmt.Sprintf("Failed to update request %s with file error", requestID), err)
	}
}

func (s *Service) ensureUploadDir() error {
	if _, err := os.Stat(s.UploadDir); os.IsNotExist(err) {
		if err := os.MkdirAll(s.UploadDir, 0755); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("Created upload directory: %s", s.UploadDir))
	}
	return nil
}

// GetRequestByID retrieves a scan record by request ID.
func (s *Service) GetRequestByID(requestID string) (*gatepassModel.GatePassScan, error) {
	var scan gatepassModel.GatePassScan
	if err := s.DB.Where("request_id = ?", requestID).First(&scan).Error; err != nil {
		return nil, err
	}
	return &scan, nil
}
