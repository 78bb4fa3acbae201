package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"workshop-tracker/constants"
	"workshop-tracker/logger"
	"workshop-tracker/middleware"
	"workshop-tracker/models/user"
	"workshop-tracker/types"
	authTypes "workshop-tracker/types/auth"
	"workshop-tracker/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New()

type AuthController struct {
	db     *gorm.DB
	Logger *logger.AsyncLogger
}

func NewAuthController(db *gorm.DB, asyncLogger *logger.AsyncLogger) *AuthController {
	return &AuthController{db: db, Logger: asyncLogger}
}

func (ac *AuthController) logAPIRequest(c *fiber.Ctx) {
	ac.Logger.Log(utils.CreateSanitizedLogEntry(c))
}

func (ac *AuthController) sendResponseWithLog(c *fiber.Ctx, status int, response types.ApiResponse) error {
	result := c.Status(status).JSON(response)
	ac.logAPIRequest(c)
	return result
}

// issueToken signs a 24h access token for the account.
func issueToken(account *user.User) (string, error) {
	claims := jwt.MapClaims{
		"uuid": account.Uuid,
		"name": account.Name,
		"role": account.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

// Helper function to set secure cookies based on environment
func (ac *AuthController) setSecureCookie(c *fiber.Ctx, name, value string, maxAge int) {
	isProduction := os.Getenv("APP_ENV") == "production"

	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		HTTPOnly: false,
		Secure:   isProduction,
		SameSite: "Strict",
		MaxAge:   maxAge,
		Path:     "/",
	})
}

// Register creates a staff account with one of the workshop roles.
func (ac *AuthController) Register(c *fiber.Ctx) error {
	var req authTypes.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Error parsing request body", err)
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: fmt.Sprintf("Error parsing request body: %v", err),
			Status:  fiber.StatusBadRequest,
		})
	}

	if err := validate.Struct(req); err != nil {
		logger.Error("Register payload failed validation", err)
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: err.Error(),
			Status:  fiber.StatusBadRequest,
		})
	}
	if err := req.Validate(); err != nil {
		logger.Error("Register payload rejected", err)
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: err.Error(),
			Status:  fiber.StatusBadRequest,
		})
	}
	if !utils.ValidatePhoneNumber(req.Mobile) {
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Invalid mobile number format",
			Status:  fiber.StatusBadRequest,
		})
	}

	var existing user.User
	err := ac.db.Where("mobile = ?", req.Mobile).First(&existing).Error
	if err == nil {
		return ac.sendResponseWithLog(c, fiber.StatusConflict, types.ApiResponse{
			Message: "An account with this mobile number already exists",
			Status:  fiber.StatusConflict,
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing account", err)
		return ac.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to create account",
			Status:  fiber.StatusInternalServerError,
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Failed to hash password", err)
		return ac.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to create account",
			Status:  fiber.StatusInternalServerError,
		})
	}

	account := user.User{
		Uuid:         uuid.New().String(),
		Name:         req.Name,
		Mobile:       req.Mobile,
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if email := req.NormalizedEmail(); email != "" {
		account.Email = &email
	}

	if err := ac.db.Create(&account).Error; err != nil {
		logger.Error("Failed to create account", err)
		return ac.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to create account",
			Status:  fiber.StatusInternalServerError,
		})
	}

	logger.Success("Registered account " + account.Mobile + " as " + account.Role)
	return ac.sendResponseWithLog(c, fiber.StatusCreated, types.ApiResponse{
		Success: true,
		Message: "Account created successfully",
		Status:  fiber.StatusCreated,
		Data:    account.Sanitized(),
	})
}

// Login verifies credentials and returns a signed access token.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req authTypes.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Error parsing request body", err)
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Invalid request body",
			Status:  fiber.StatusBadRequest,
		})
	}
	if err := req.Validate(); err != nil {
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: err.Error(),
			Status:  fiber.StatusBadRequest,
		})
	}

	var account user.User
	if err := ac.db.Where("mobile = ?", req.Mobile).First(&account).Error; err != nil {
		return ac.sendResponseWithLog(c, fiber.StatusUnauthorized, types.ApiResponse{
			Message: "Invalid mobile number or password",
			Status:  fiber.StatusUnauthorized,
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return ac.sendResponseWithLog(c, fiber.StatusUnauthorized, types.ApiResponse{
			Message: "Invalid mobile number or password",
			Status:  fiber.StatusUnauthorized,
		})
	}

	token, err := issueToken(&account)
	if err != nil {
		logger.Error("Failed to sign access token", err)
		return ac.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to sign access token",
			Status:  fiber.StatusInternalServerError,
		})
	}

	ac.setSecureCookie(c, "access", token, 24*3600)
	logger.Success("Login: " + account.Mobile)

	return ac.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Login successful",
		Status:  fiber.StatusOK,
		Token:   token,
		Data:    account.Sanitized(),
	})
}

// LogOut clears the access cookie. Tokens themselves stay valid until expiry.
func (ac *AuthController) LogOut(c *fiber.Ctx) error {
	ac.setSecureCookie(c, "access", "", -1)
	return ac.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Logged out successfully",
		Status:  fiber.StatusOK,
	})
}

// Profile returns the authenticated account.
func (ac *AuthController) Profile(c *fiber.Ctx) error {
	account, ok := middleware.CurrentUser(c)
	if !ok {
		return ac.sendResponseWithLog(c, fiber.StatusUnauthorized, types.ApiResponse{
			Message: "Authentication required",
			Status:  fiber.StatusUnauthorized,
		})
	}
	return ac.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Profile fetched successfully",
		Status:  fiber.StatusOK,
		Data:    account.Sanitized(),
	})
}

// ListUsers returns every staff account. Admin only.
func (ac *AuthController) ListUsers(c *fiber.Ctx) error {
	var accounts []user.User
	if err := ac.db.Order("created_at DESC").Find(&accounts).Error; err != nil {
		logger.Error("Failed to list users", err)
		return ac.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to list users",
			Status:  fiber.StatusInternalServerError,
		})
	}

	sanitized := make([]map[string]interface{}, len(accounts))
	for i := range accounts {
		sanitized[i] = accounts[i].Sanitized()
	}
	return ac.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "Users fetched successfully",
		Status:  fiber.StatusOK,
		Data:    sanitized,
	})
}

// DeleteUser removes a staff account. Admin only; admins cannot delete
// themselves.
func (ac *AuthController) DeleteUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "Invalid user id",
			Status:  fiber.StatusBadRequest,
		})
	}

	if self, ok := middleware.CurrentUser(c); ok && self.ID == uint(id) {
		return ac.sendResponseWithLog(c, fiber.StatusBadRequest, types.ApiResponse{
			Message: "You cannot delete your own account",
			Status:  fiber.StatusBadRequest,
		})
	}

	res := ac.db.Delete(&user.User{}, id)
	if res.Error != nil {
		logger.Error("Failed to delete user", res.Error)
		return ac.sendResponseWithLog(c, fiber.StatusInternalServerError, types.ApiResponse{
			Message: "Failed to delete user",
			Status:  fiber.StatusInternalServerError,
		})
	}
	if res.RowsAffected == 0 {
		return ac.sendResponseWithLog(c, fiber.StatusNotFound, types.ApiResponse{
			Message: "User not found",
			Status:  fiber.StatusNotFound,
		})
	}

	return ac.sendResponseWithLog(c, fiber.StatusOK, types.ApiResponse{
		Success: true,
		Message: "User deleted successfully",
		Status:  fiber.StatusOK,
	})
}

// AddUser lets an admin create an account for any role, including roles kept
// out of public registration.
func (ac *AuthController) AddUser(c *fiber.Ctx) error {
	if self, ok := middleware.CurrentUser(c); !ok || self.Role != constants.RoleAdmin {
		return ac.sendResponseWithLog(c, fiber.StatusForbidden, types.ApiResponse{
			Message: "Only admins can add users",
			Status:  fiber.StatusForbidden,
		})
	}
	return ac.Register(c)
}
