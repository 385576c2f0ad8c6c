package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/services"
	"dental-clinic-server/internal/utils"
)

// NotificationHandler serves the in-app inbox. Lab accounts share their laboratory's inbox.
type NotificationHandler struct {
	Store repository.Store
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(store repository.Store) *NotificationHandler {
	return &NotificationHandler{Store: store}
}

// recipient maps the caller to the recipient key notifications are addressed to.
func recipient(c *gin.Context, actor services.Actor) (models.ActorType, string, bool) {
	if actor.Type() == models.ActorProtetico {
		if actor.LaboratoryID == nil {
			utils.Forbidden(c, "Laboratory account is not linked to a laboratory")
			return "", "", false
		}
		return models.ActorProtetico, *actor.LaboratoryID, true
	}
	return models.ActorDentist, actor.UserID, true
}

// GetNotifications lists the caller's notifications, newest first. ?unread=true hides read ones.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	kind, id, ok := recipient(c, actor)
	if !ok {
		return
	}
	notifications, err := h.Store.Notifications().ListForRecipient(c.Request.Context(), actor.ClinicID, kind, id, queryBool(c, "unread"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Notifications fetched successfully", notifications)
}

// MarkNotificationRead marks one notification as read.
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	_, id, ok := recipient(c, actor)
	if !ok {
		return
	}
	if err := h.Store.Notifications().MarkRead(c.Request.Context(), actor.ClinicID, id, c.Param("id"), time.Now()); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Notification marked as read", nil)
}

// MarkAllNotificationsRead marks the caller's whole inbox as read.
func (h *NotificationHandler) MarkAllNotificationsRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	_, id, ok := recipient(c, actor)
	if !ok {
		return
	}
	count, err := h.Store.Notifications().MarkAllRead(c.Request.Context(), actor.ClinicID, id, time.Now())
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Notifications marked as read", gin.H{"updated": count})
}
