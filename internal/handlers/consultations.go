package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/services"
	"dental-clinic-server/internal/utils"
)

// ConsultationHandler exposes the consultation timer.
type ConsultationHandler struct {
	Service *services.ConsultationService
}

// NewConsultationHandler creates a new ConsultationHandler.
func NewConsultationHandler(svc *services.ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{Service: svc}
}

// StartConsultationRequest represents the request body for starting a consultation.
type StartConsultationRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
}

// StartConsultation opens the timer for an appointment.
func (h *ConsultationHandler) StartConsultation(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req StartConsultationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	consultation, err := h.Service.Start(c.Request.Context(), actor, req.AppointmentID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Consultation started successfully", consultation)
}

// ConsultationActionRequest represents the PATCH body. Prontuario, PaymentAmount
// and ReturnVisit only apply to the end action.
type ConsultationActionRequest struct {
	Action        string                `json:"action" binding:"required"`
	Prontuario    *services.Prontuario  `json:"prontuario"`
	PaymentAmount *float64              `json:"paymentAmount"`
	ReturnVisit   *services.ReturnVisit `json:"returnVisit"`
}

// UpdateConsultation pauses, resumes or ends a consultation.
func (h *ConsultationHandler) UpdateConsultation(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req ConsultationActionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	action := strings.ToLower(strings.TrimSpace(req.Action))
	result, err := h.Service.Apply(c.Request.Context(), actor, c.Param("id"), action, services.EndInput{
		Prontuario:    req.Prontuario,
		PaymentAmount: req.PaymentAmount,
		ReturnVisit:   req.ReturnVisit,
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	message := "Consultation updated successfully"
	switch action {
	case services.ActionPause:
		message = "Consultation paused"
	case services.ActionResume:
		message = "Consultation resumed"
	case services.ActionEnd:
		message = "Consultation completed"
	}
	utils.Success(c, message, result)
}

// GetConsultation handles fetching a consultation by ID.
func (h *ConsultationHandler) GetConsultation(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	consultation, err := h.Service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Consultation fetched successfully", consultation)
}

// GetConsultationByAppointment returns the consultation started for an appointment.
func (h *ConsultationHandler) GetConsultationByAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	consultation, err := h.Service.GetByAppointment(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Consultation fetched successfully", consultation)
}

// GetConsultations lists consultations, optionally filtered by ?status=.
func (h *ConsultationHandler) GetConsultations(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	consultations, err := h.Service.List(c.Request.Context(), actor, c.Query("status"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Consultations fetched successfully", consultations)
}
