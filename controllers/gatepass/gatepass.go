package gatepass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"workshop-tracker/logger"
	gatepassService "workshop-tracker/services/gatepass"
	"workshop-tracker/services/stageflow"
	"workshop-tracker/types"
	"workshop-tracker/utils"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/genai"
	"gorm.io/gorm"
)

type GatePassController struct {
	DB      *gorm.DB
	Logger  *logger.AsyncLogger
	Service *gatepassService.Service
}

func NewGatePassController(db *gorm.DB, asyncLogger *logger.AsyncLogger) *GatePassController {
	return &GatePassController{
		DB:      db,
		Logger:  asyncLogger,
		Service: gatepassService.NewService(db),
	}
}

func (gc *GatePassController) logAPIRequest(c *fiber.Ctx) {
	gc.Logger.Log(utils.CreateSanitizedLogEntry(c))
}

func (gc *GatePassController) sendResponseWithLog(c *fiber.Ctx, status int, response types.ApiResponse) error {
	result := c.Status(status).JSON(response)
	gc.logAPIRequest(c)
	return result
}

// parsedGatePass is the structure the vision model is asked to return.
type parsedGatePass struct {
	VehicleNumber string   `json:"vehicle_number"`
	InKM          *float64 `json:"in_km"`
	InDriver      string   `json:"in_driver"`
}

// Parse handles the gate-pass photo upload at the security gate and extracts
// the entry fields with the Gemini Vision API.
func (gc *GatePassController) Parse(c *fiber.Ctx) error {
	startTime := time.Now()
	requestID := gc.Service.GenerateRequestID()

	file, err := c.FormFile("image")
	if err != nil {
		logger.Error(fmt.Sprintf("No image file provided for request %s", requestID), err)
		return gc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "No image file provided",
			Status:  fiber.StatusBadRequest,
			Data:    map[string]interface{}{"request_id": requestID},
		})
	}

	mimeType := file.Header.Get("Content-Type")
	if !isValidImageType(mimeType) {
		logger.Error(fmt.Sprintf("Invalid file type %s for request %s", mimeType, requestID),
			fmt.Errorf("invalid mime type: %s", mimeType))
		return gc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Invalid file type. Only JPEG, JPG, PNG, and WebP files are allowed",
			Status:  fiber.StatusBadRequest,
			Data:    map[string]interface{}{"request_id": requestID},
		})
	}

	maxSize := int64(10 * 1024 * 1024)
	if file.Size > maxSize {
		return gc.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "File size too large. Maximum size is 10MB",
			Status:  fiber.StatusBadRequest,
			Data:    map[string]interface{}{"request_id": requestID},
		})
	}

	if _, err := gc.Service.CreateInitialRequest(c, requestID, file.Filename, file.Size, mimeType); err != nil {
		logger.Error(fmt.Sprintf("Failed to create initial request %s", requestID), err)
		return gc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to initialize request",
			Status:  fiber.StatusInternalServerError,
			Data:    map[string]interface{}{"request_id": requestID},
		})
	}

	src, err := file.Open()
	if err != nil {
		elapsed := time.Since(startTime).Milliseconds()
		gc.Service.SaveFailureResultAsync(requestID, "Failed to open uploaded file", elapsed)
		return gc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to process uploaded file",
			Status:  fiber.StatusInternalServerError,
			Data:    map[string]interface{}{"request_id": requestID},
		})
	}
	defer src.Close()

	fileBytes, err := io.ReadAll(src)
	if err != nil {
		elapsed := time.Since(startTime).Milliseconds()
		gc.Service.SaveFailureResultAsync(requestID, "Failed to read file content", elapsed)
		return gc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to read file content",
			Status:  fiber.StatusInternalServerError,
			Data:    map[string]interface{}{"request_id": requestID},
		})
	}

	gc.Service.SaveFileAsync(requestID, fileBytes, file.Filename)

	result, raw, err := parseGatePassWithGemini(fileBytes, mimeType)
	if err != nil {
		elapsed := time.Since(startTime).Milliseconds()
		gc.Service.SaveFailureResultAsync(requestID, fmt.Sprintf("Gemini parsing failed: %s", err.Error()), elapsed)
		logger.Error(fmt.Sprintf("Failed to parse gate pass for request %s", requestID), err)
		return gc.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to parse gate pass",
			Status:  fiber.StatusInternalServerError,
			Data: map[string]interface{}{
				"error":      err.Error(),
				"request_id": requestID,
			},
		})
	}

	result.VehicleNumber = stageflow.NormalizeVehicleNumber(result.VehicleNumber)

	elapsed := time.Since(startTime).Milliseconds()
	var inDriver *string
	if result.InDriver != "" {
		inDriver = &result.InDriver
	}
	gc.Service.SaveSuccessResultAsync(requestID, result.VehicleNumber, result.InKM, inDriver, raw, elapsed)

	logger.Success(fmt.Sprintf("Gate pass parsed in %dms for vehicle %s, Request ID: %s",
		elapsed, result.VehicleNumber, requestID))

	return gc.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Gate pass parsed successfully",
		Status:  fiber.StatusOK,
		Data: map[string]interface{}{
			"request_id":     requestID,
			"vehicle_number": result.VehicleNumber,
			"in_km":          result.InKM,
			"in_driver":      result.InDriver,
		},
	})
}

// parseGatePassWithGemini extracts the entry fields from a gate-pass photo.
func parseGatePassWithGemini(imageBytes []byte, mimeType string) (*parsedGatePass, string, error) {
	ctx := context.Background()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, "", fmt.Errorf("GEMINI_API_KEY not found in environment variables")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create Gemini client: %w", err)
	}

	prompt := `Analyze this vehicle workshop gate pass image and extract the following information. Return ONLY valid JSON.

			Extract these fields from the image. If a field is missing or unclear, use an empty string (null for in_km).

			Required JSON format:
			{
			"vehicle_number": string,   // Vehicle registration plate number
			"in_km": number,            // Odometer reading at entry, digits only
			"in_driver": string         // Name of the driver bringing the vehicle in
			}`

	content := &genai.Content{
		Parts: []*genai.Part{
			&genai.Part{Text: prompt},
			&genai.Part{InlineData: &genai.Blob{
				MIMEType: mimeType,
				Data:     imageBytes,
			}},
		},
	}

	result, err := client.Models.GenerateContent(
		ctx,
		"gemini-2.5-flash-lite",
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(0.1)),
		},
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate content with OCR: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, "", fmt.Errorf("no content generated by OCR")
	}

	responseText := result.Candidates[0].Content.Parts[0].Text
	if responseText == "" {
		return nil, "", fmt.Errorf("empty response from OCR")
	}

	jsonText := extractJSONFromMarkdown(responseText)

	var parsed parsedGatePass
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return nil, "", fmt.Errorf("failed to parse JSON response: %w, response: %s", err, jsonText)
	}
	if parsed.VehicleNumber == "" {
		return nil, "", fmt.Errorf("no vehicle number found on gate pass")
	}

	return &parsed, responseText, nil
}

// extractJSONFromMarkdown extracts JSON content from markdown code blocks.
func extractJSONFromMarkdown(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") && strings.HasSuffix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") && strings.HasSuffix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) > 1 {
			jsonLines := lines[1 : len(lines)-1]
			return strings.Join(jsonLines, "\n")
		}
	}

	return text
}

// isValidImageType checks if the provided content type is a valid image type.
func isValidImageType(contentType string) bool {
	validTypes := map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/webp": true,
	}
	return validTypes[contentType]
}
