package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"workshop-tracker/database"
	"workshop-tracker/models/user"
	"workshop-tracker/types"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// FormatMs renders a millisecond duration as "1d 2h 3m 4s" for dashboards.
// Negative input means the interval could not be computed.
func FormatMs(ms int64) string {
	if ms < 0 {
		return "N/A"
	}

	seconds := ms / 1000
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if secs > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", secs))
	}
	return strings.Join(parts, " ")
}

// DateRange resolves a dashboard period filter into a [start, end] window
// around the reference instant. Unknown filters fall back to today.
func DateRange(filter string, ref time.Time) (time.Time, time.Time) {
	n := now.With(ref)

	switch filter {
	case "thisWeek":
		return n.BeginningOfWeek(), n.EndOfWeek()
	case "lastWeek":
		lw := now.With(ref.AddDate(0, 0, -7))
		return lw.BeginningOfWeek(), lw.EndOfWeek()
	case "thisMonth":
		return n.BeginningOfMonth(), n.EndOfMonth()
	case "lastMonth":
		lm := now.With(n.BeginningOfMonth().AddDate(0, 0, -1))
		return lm.BeginningOfMonth(), lm.EndOfMonth()
	default:
		return n.BeginningOfDay(), n.EndOfDay()
	}
}

// GetUserByUUID retrieves a user by their UUID from the database.
func GetUserByUUID(uuid string) (*user.User, error) {
	if uuid == "" {
		return nil, errors.New("UUID cannot be empty")
	}

	var userModel user.User
	if err := database.DB.Where("uuid = ?", uuid).First(&userModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &userModel, nil
}

// ValidatePhoneNumber validates a mobile number.
// Allows: 01xxxxxxxxx or +8801xxxxxxxxx (where x is any digit 0-9)
func ValidatePhoneNumber(phone string) bool {
	phone = strings.TrimSpace(phone)
	re := regexp.MustCompile(`^(?:\+88)?01[0-9]{9}$`)
	return re.MatchString(phone)
}

// sanitizeRequestBody keeps file uploads and oversized payloads out of the
// request log.
func sanitizeRequestBody(c *fiber.Ctx) string {
	contentType := c.Get("Content-Type")
	if strings.Contains(contentType, "multipart/form-data") {
		formData := make(map[string]interface{})

		if form, err := c.MultipartForm(); err == nil {
			for key, values := range form.Value {
				if len(values) > 0 {
					formData[key] = values[0]
				}
			}
			for key, files := range form.File {
				fileInfo := make([]map[string]interface{}, len(files))
				for i, file := range files {
					fileInfo[i] = map[string]interface{}{
						"filename": file.Filename,
						"size":     file.Size,
						"content":  "[FILE_CONTENT_REMOVED]",
					}
				}
				formData[key] = fileInfo
			}
		}

		if jsonBytes, err := json.Marshal(formData); err == nil {
			return string(jsonBytes)
		}
		return "[MULTIPART_FORM_DATA]"
	}

	body := string(c.Body())
	if len(body) > 1000 && (strings.Contains(body, "data:image/") ||
		strings.Contains(body, "base64") ||
		isLikelyBase64(body)) {
		return "[LARGE_REQUEST_BODY_WITH_POSSIBLE_FILE_CONTENT]"
	}

	return body
}

// isLikelyBase64 detects if content looks like base64.
func isLikelyBase64(content string) bool {
	if len(content) < 100 {
		return false
	}

	base64Chars := 0
	for _, char := range content {
		if (char >= 'A' && char <= 'Z') ||
			(char >= 'a' && char <= 'z') ||
			(char >= '0' && char <= '9') ||
			char == '+' || char == '/' || char == '=' {
			base64Chars++
		}
	}

	return float64(base64Chars)/float64(len(content)) > 0.8
}

// CreateSanitizedLogEntry deep-copies request and response data into a log
// entry safe to hand to the async logger after the handler returns.
func CreateSanitizedLogEntry(c *fiber.Ctx) types.LogEntry {
	method := string([]byte(c.Method()))
	url := string([]byte(c.OriginalURL()))
	requestBody := sanitizeRequestBody(c)
	responseBody := string(append([]byte(nil), c.Response().Body()...))

	requestHeaders := make([]byte, len(c.Request().Header.Header()))
	copy(requestHeaders, c.Request().Header.Header())

	responseHeaders := make([]byte, len(c.Response().Header.Header()))
	copy(responseHeaders, c.Response().Header.Header())

	return types.LogEntry{
		Method:          method,
		URL:             url,
		RequestBody:     requestBody,
		ResponseBody:    responseBody,
		RequestHeaders:  string(requestHeaders),
		ResponseHeaders: string(responseHeaders),
		StatusCode:      c.Response().StatusCode(),
		CreatedAt:       time.Now(),
	}
}
