package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/middleware"
	"dental-clinic-server/internal/services"
	"dental-clinic-server/internal/utils"
)

// currentActor writes a 401 and returns false when the request carries no identity.
func currentActor(c *gin.Context) (services.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
	}
	return actor, ok
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

// queryTime parses an RFC3339 or YYYY-MM-DD query value. Empty yields nil.
func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	utils.BadRequest(c, "Invalid "+key+" date, expected RFC3339 or YYYY-MM-DD")
	return nil, false
}
