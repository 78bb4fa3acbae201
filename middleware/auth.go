package middleware

import (
	"fmt"
	"os"
	"strings"

	"workshop-tracker/database"
	"workshop-tracker/models/user"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// jwtSecret returns the HMAC signing key for access tokens.
func jwtSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

// VerifyJWT verifies an access token and returns its claims.
func VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT token")
	}
	return claims, nil
}

// extractToken reads the access token from the Authorization header, falling
// back to the access cookie.
func extractToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return "", fmt.Errorf("invalid authorization header format")
		}
		return tokenParts[1], nil
	}

	token := c.Cookies("access")
	if token == "" {
		return "", fmt.Errorf("authorization token missing")
	}
	return token, nil
}

// IsAuthenticated checks for a valid access token and loads the account into
// c.Locals("user"). Tokens whose account no longer exists are rejected.
func IsAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := extractToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  err.Error(),
			})
		}

		claims, err := VerifyJWT(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "Invalid or expired token",
			})
		}

		uid, ok := claims["uuid"].(string)
		if !ok || uid == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "Invalid token claims",
			})
		}

		var account user.User
		if err := database.DB.Where("uuid = ?", uid).First(&account).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "Account not found",
			})
		}

		c.Locals("user", &account)
		c.Locals("claims", claims)
		return c.Next()
	}
}

// RequireRoles allows access only to accounts holding one of the given roles.
// It must run after IsAuthenticated.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account, ok := c.Locals("user").(*user.User)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status": "error",
				"error":  "Authentication required",
			})
		}

		for _, role := range roles {
			if account.Role == role {
				return c.Next()
			}
		}

		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"status": "error",
			"error":  "Insufficient role for this action",
		})
	}
}

// CurrentUser returns the authenticated account from the request context.
func CurrentUser(c *fiber.Ctx) (*user.User, bool) {
	account, ok := c.Locals("user").(*user.User)
	return account, ok
}
