package handlers

import (
	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/services"
	"dental-clinic-server/internal/utils"
)

// ProstheticOrderHandler exposes the laboratory order workflow.
type ProstheticOrderHandler struct {
	Service *services.ProstheticOrderService
}

// NewProstheticOrderHandler creates a new ProstheticOrderHandler.
func NewProstheticOrderHandler(svc *services.ProstheticOrderService) *ProstheticOrderHandler {
	return &ProstheticOrderHandler{Service: svc}
}

// CreateOrder opens a new order in the pending state.
func (h *ProstheticOrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req services.OrderInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	order, err := h.Service.Create(c.Request.Context(), actor, req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Prosthetic order created successfully", order)
}

// UpdateOrder edits the specification of an order.
func (h *ProstheticOrderHandler) UpdateOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req services.OrderInput
	if !utils.BindAndValidate(c, &req) {
		return
	}
	order, err := h.Service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prosthetic order updated successfully", order)
}

// UpdateOrderStatusRequest represents the request body for a status change.
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdateOrderStatus moves an order through the pipeline.
func (h *ProstheticOrderHandler) UpdateOrderStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	order, err := h.Service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req.Status, req.Notes)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prosthetic order status updated successfully", order)
}

// AdjustmentRequest carries what needs fixing.
type AdjustmentRequest struct {
	Notes string `json:"notes"`
}

// RequestAdjustment sends an order back for adjustment.
func (h *ProstheticOrderHandler) RequestAdjustment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req AdjustmentRequest
	if c.Request.ContentLength > 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	order, err := h.Service.MarkAdjustment(c.Request.Context(), actor, c.Param("id"), req.Notes)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prosthetic order sent to adjustment", order)
}

// GetOrder returns the order with its history, comments and progress.
func (h *ProstheticOrderHandler) GetOrder(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	detail, err := h.Service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prosthetic order fetched successfully", detail)
}

// GetOrders lists orders. ?status= takes a status or one of the all, pending, production and ready buckets.
func (h *ProstheticOrderHandler) GetOrders(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orders, err := h.Service.List(c.Request.Context(), actor, services.OrderFilter{
		Status:       c.Query("status"),
		DentistID:    c.Query("dentistId"),
		LaboratoryID: c.Query("laboratoryId"),
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Prosthetic orders fetched successfully", orders)
}

// AddCommentRequest represents the request body for an order comment.
type AddCommentRequest struct {
	Message string `json:"message" binding:"required"`
}

// AddComment posts a message on the order thread.
func (h *ProstheticOrderHandler) AddComment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req AddCommentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	comment, err := h.Service.AddComment(c.Request.Context(), actor, c.Param("id"), req.Message)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Comment added successfully", comment)
}

// GetHistory returns the status history, oldest first.
func (h *ProstheticOrderHandler) GetHistory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	history, err := h.Service.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Order history fetched successfully", history)
}

// GetComments returns the comment thread, oldest first.
func (h *ProstheticOrderHandler) GetComments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	comments, err := h.Service.Comments(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Order comments fetched successfully", comments)
}
