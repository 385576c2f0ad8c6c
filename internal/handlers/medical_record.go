package handlers

import (
	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/utils"
)

// MedicalRecordHandler serves the read side of medical records.
// Records are only written when a consultation ends.
type MedicalRecordHandler struct {
	Store repository.Store
}

// NewMedicalRecordHandler creates a new MedicalRecordHandler.
func NewMedicalRecordHandler(store repository.Store) *MedicalRecordHandler {
	return &MedicalRecordHandler{Store: store}
}

// GetPatientMedicalRecords lists a patient's records, newest first.
func (h *MedicalRecordHandler) GetPatientMedicalRecords(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	patientID := c.Param("id")
	if _, err := h.Store.Patients().FindByID(ctx, actor.ClinicID, patientID); err != nil {
		utils.HandleError(c, err)
		return
	}
	records, err := h.Store.MedicalRecords().ListByPatient(ctx, actor.ClinicID, patientID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical records fetched successfully", records)
}

// GetMedicalRecordByID handles fetching a single medical record.
func (h *MedicalRecordHandler) GetMedicalRecordByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	record, err := h.Store.MedicalRecords().FindByID(c.Request.Context(), actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical record fetched successfully", record)
}

// GetConsultationMedicalRecord returns the record written when the consultation ended.
func (h *MedicalRecordHandler) GetConsultationMedicalRecord(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	record, err := h.Store.MedicalRecords().FindByConsultation(c.Request.Context(), actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical record fetched successfully", record)
}
