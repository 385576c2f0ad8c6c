package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/utils"
)

const defaultAppointmentLength = 30 * time.Minute

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Store repository.Store
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(store repository.Store) *AppointmentHandler {
	return &AppointmentHandler{Store: store}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
// EndTime defaults to thirty minutes after StartTime.
type CreateAppointmentRequest struct {
	PatientID string     `json:"patientId" binding:"required"`
	DentistID string     `json:"dentistId" binding:"required"`
	StartTime time.Time  `json:"startTime" binding:"required"`
	EndTime   *time.Time `json:"endTime"`
	Reason    string     `json:"reason"`
	Notes     string     `json:"notes"`
	IsReturn  bool       `json:"isReturn"`
}

// checkParties makes sure patient and dentist belong to the clinic.
func (h *AppointmentHandler) checkParties(c *gin.Context, clinicID, patientID, dentistID string) bool {
	ctx := c.Request.Context()
	if patientID != "" {
		if _, err := h.Store.Patients().FindByID(ctx, clinicID, patientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				utils.NotFound(c, "Patient not found")
			} else {
				utils.HandleError(c, err)
			}
			return false
		}
	}
	dentist, err := h.Store.Users().FindByID(ctx, clinicID, dentistID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && dentist.Role != models.RoleDentist && dentist.Role != models.RoleAdmin) {
		utils.NotFound(c, "Dentist not found or user is not a dentist")
		return false
	}
	if err != nil {
		utils.HandleError(c, err)
		return false
	}
	return true
}

// CreateAppointment books a slot for a patient with a dentist.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	end := req.StartTime.Add(defaultAppointmentLength)
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if !end.After(req.StartTime) {
		utils.BadRequest(c, "endTime must be after startTime")
		return
	}
	if !h.checkParties(c, actor.ClinicID, req.PatientID, req.DentistID) {
		return
	}

	appointment := models.Appointment{
		ClinicID:  actor.ClinicID,
		PatientID: req.PatientID,
		DentistID: req.DentistID,
		StartTime: req.StartTime,
		EndTime:   end,
		Status:    models.AppointmentScheduled,
		Reason:    req.Reason,
		Notes:     req.Notes,
		IsReturn:  req.IsReturn,
	}
	if err := h.Store.Appointments().Create(c.Request.Context(), &appointment); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appointment)
}

// GetAppointments lists the clinic agenda. Dentists see their own agenda unless they ask for another dentist.
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}

	filter := repository.AppointmentFilter{
		DentistID: c.Query("dentistId"),
		PatientID: c.Query("patientId"),
		Status:    models.AppointmentStatus(strings.ToUpper(c.Query("status"))),
		From:      from,
		To:        to,
	}
	if filter.DentistID == "" && actor.Role == models.RoleDentist && !queryBool(c, "all") {
		filter.DentistID = actor.UserID
	}

	appointments, err := h.Store.Appointments().List(c.Request.Context(), actor.ClinicID, filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", appointments)
}

// GetAppointmentByID handles fetching a single appointment by its ID.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	appointment, err := h.Store.Appointments().FindByID(c.Request.Context(), actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appointment)
}

// UpdateAppointmentStatusRequest represents the request body for updating an appointment's status.
// IN_PROGRESS and COMPLETED are owned by the consultation timer.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required,oneof=SCHEDULED CONFIRMED CANCELLED NO_SHOW"`
	Notes  string                   `json:"notes"`
}

// UpdateAppointmentStatus confirms, cancels or marks a no-show.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	appointment, err := h.Store.Appointments().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if appointment.Status == models.AppointmentInProgress || appointment.Status == models.AppointmentCompleted {
		utils.Conflict(c, "Appointment already has a consultation; its status follows the consultation")
		return
	}

	appointment.Status = req.Status
	if req.Notes != "" {
		appointment.Notes = req.Notes
	}
	if err := h.Store.Appointments().Update(ctx, appointment); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appointment)
}

// RescheduleAppointmentRequest represents the request body for rescheduling an appointment.
type RescheduleAppointmentRequest struct {
	StartTime time.Time  `json:"startTime" binding:"required"`
	EndTime   *time.Time `json:"endTime"`
	DentistID string     `json:"dentistId"`
}

// RescheduleAppointment moves an appointment that has not started yet.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	appointment, err := h.Store.Appointments().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	switch appointment.Status {
	case models.AppointmentScheduled, models.AppointmentConfirmed:
	default:
		utils.Conflict(c, "Only scheduled or confirmed appointments can be rescheduled")
		return
	}

	length := appointment.EndTime.Sub(appointment.StartTime)
	if length <= 0 {
		length = defaultAppointmentLength
	}
	end := req.StartTime.Add(length)
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if !end.After(req.StartTime) {
		utils.BadRequest(c, "endTime must be after startTime")
		return
	}
	if req.DentistID != "" && req.DentistID != appointment.DentistID {
		if !h.checkParties(c, actor.ClinicID, "", req.DentistID) {
			return
		}
		appointment.DentistID = req.DentistID
	}

	appointment.StartTime = req.StartTime
	appointment.EndTime = end
	appointment.Status = models.AppointmentScheduled
	if err := h.Store.Appointments().Update(ctx, appointment); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment rescheduled successfully", appointment)
}
