package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/utils"
)

// PatientHandler handles the clinic's patient registry.
type PatientHandler struct {
	Store repository.Store
}

func NewPatientHandler(store repository.Store) *PatientHandler {
	return &PatientHandler{Store: store}
}

// PatientRequest is used for create and full update.
type PatientRequest struct {
	Name      string       `json:"name" binding:"required"`
	Email     string       `json:"email" binding:"omitempty,email"`
	Phone     string       `json:"phone"`
	Document  string       `json:"document" binding:"max=20"`
	BirthDate *models.Date `json:"birthDate"`
	Notes     string       `json:"notes"`
}

func (r PatientRequest) apply(p *models.Patient) {
	p.Name = strings.TrimSpace(r.Name)
	p.Email = r.Email
	p.Phone = r.Phone
	p.Document = r.Document
	p.BirthDate = r.BirthDate.TimePtr()
	p.Notes = r.Notes
}

func (h *PatientHandler) CreatePatient(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req PatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient := models.Patient{ClinicID: actor.ClinicID, Active: true}
	req.apply(&patient)
	if err := h.Store.Patients().Create(c.Request.Context(), &patient); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Patient created successfully", patient)
}

// GetPatients lists patients; ?search= matches the name, ?includeInactive=true shows deactivated ones.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	patients, err := h.Store.Patients().List(c.Request.Context(), actor.ClinicID, repository.PatientFilter{
		Search:          strings.TrimSpace(c.Query("search")),
		IncludeInactive: queryBool(c, "includeInactive"),
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	patient, err := h.Store.Patients().FindByID(c.Request.Context(), actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient fetched successfully", patient)
}

func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req PatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	patient, err := h.Store.Patients().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	req.apply(patient)
	if err := h.Store.Patients().Update(ctx, patient); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient updated successfully", patient)
}

// DeletePatient deactivates the patient; clinical history is kept.
func (h *PatientHandler) DeletePatient(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	patient, err := h.Store.Patients().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	patient.Active = false
	if err := h.Store.Patients().Update(ctx, patient); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Patient deactivated successfully", nil)
}
