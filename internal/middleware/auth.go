package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/services"
	"dental-clinic-server/internal/utils"
)

const (
	ctxUserID       = "userID"
	ctxUserRole     = "userRole"
	ctxClinicID     = "clinicID"
	ctxLaboratoryID = "laboratoryID"
)

// AuthMiddleware creates a middleware for JWT authentication.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			utils.Unauthorized(c, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ValidateToken(parts[1], cfg.JWTSecret)
		if err != nil {
			utils.Unauthorized(c, "Invalid token: "+err.Error())
			c.Abort()
			return
		}

		// Set user information in context for downstream handlers
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxClinicID, claims.ClinicID)
		if claims.LaboratoryID != nil {
			c.Set(ctxLaboratoryID, *claims.LaboratoryID)
		}

		c.Next()
	}
}

// RoleAuthMiddleware creates a middleware for role-based authorization.
// It should be used *after* AuthMiddleware.
func RoleAuthMiddleware(allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		if !ok {
			utils.InternalServerError(c, "User role not found in context. AuthMiddleware might be missing.")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.Forbidden(c, "You do not have permission to access this resource.")
		c.Abort()
	}
}

// GetUserIDFromContext returns the authenticated user id.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	return c.GetString(ctxUserID), c.GetString(ctxUserID) != ""
}

// GetUserRoleFromContext returns the authenticated user role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	userRole, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	role, ok := userRole.(models.Role)
	return role, ok
}

// GetClinicIDFromContext returns the tenant of the authenticated user.
func GetClinicIDFromContext(c *gin.Context) (string, bool) {
	return c.GetString(ctxClinicID), c.GetString(ctxClinicID) != ""
}

// ActorFromContext builds the engine caller from the authenticated request.
func ActorFromContext(c *gin.Context) (services.Actor, bool) {
	userID, ok := GetUserIDFromContext(c)
	if !ok {
		return services.Actor{}, false
	}
	clinicID, ok := GetClinicIDFromContext(c)
	if !ok {
		return services.Actor{}, false
	}
	role, _ := GetUserRoleFromContext(c)
	actor := services.Actor{UserID: userID, ClinicID: clinicID, Role: role}
	if lab := c.GetString(ctxLaboratoryID); lab != "" {
		actor.LaboratoryID = &lab
	}
	return actor, true
}
