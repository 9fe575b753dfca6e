package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"treevault/models"
	"treevault/utils"
)

const ownerContextKey = "owner"

// AuthMiddleware verifies the bearer token and resolves the acting owner.
// Admin tokens carrying a tenant id act as the tenant; everyone else acts
// as their personal user namespace.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization token required", nil)
			c.Abort()
			return
		}

		claims, err := utils.VerifyJWTToken(token, jwtSecret)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid or expired token", nil)
			c.Abort()
			return
		}

		owner, err := ownerFromClaims(claims)
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid identity in token", nil)
			c.Abort()
			return
		}

		c.Set(ownerContextKey, owner)
		c.Set("userId", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)

		c.Next()
	}
}

func ownerFromClaims(claims *utils.Claims) (models.Owner, error) {
	if claims.Role == "admin" && claims.TenantID != "" {
		tenantID, err := primitive.ObjectIDFromHex(claims.TenantID)
		if err != nil {
			return models.Owner{}, err
		}
		return models.Owner{ID: tenantID, Kind: models.OwnerKindTenant}, nil
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return models.Owner{}, err
	}
	return models.Owner{ID: userID, Kind: models.OwnerKindUser}, nil
}

// OwnerFromContext returns the owner set by AuthMiddleware.
func OwnerFromContext(c *gin.Context) (models.Owner, bool) {
	value, exists := c.Get(ownerContextKey)
	if !exists {
		return models.Owner{}, false
	}
	owner, ok := value.(models.Owner)
	return owner, ok
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}
