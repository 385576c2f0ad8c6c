package handlers

import (
	"errors"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/utils"
)

// LaboratoryHandler manages the external prosthetic laboratories a clinic works with.
type LaboratoryHandler struct {
	Store repository.Store
}

func NewLaboratoryHandler(store repository.Store) *LaboratoryHandler {
	return &LaboratoryHandler{Store: store}
}

type LaboratoryRequest struct {
	Name            string   `json:"name" binding:"required"`
	ResponsibleName string   `json:"responsibleName"`
	Email           string   `json:"email" binding:"required,email"`
	Phone           string   `json:"phone"`
	Specialties     []string `json:"specialties"`
}

// specialtySet trims, drops blanks and removes duplicates.
func specialtySet(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (r LaboratoryRequest) apply(l *models.Laboratory) {
	l.Name = strings.TrimSpace(r.Name)
	l.ResponsibleName = r.ResponsibleName
	l.Email = strings.ToLower(strings.TrimSpace(r.Email))
	l.Phone = r.Phone
	l.Specialties = specialtySet(r.Specialties)
}

func (h *LaboratoryHandler) CreateLaboratory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req LaboratoryRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	lab := models.Laboratory{ClinicID: actor.ClinicID, Active: true}
	req.apply(&lab)
	if err := h.Store.Laboratories().Create(c.Request.Context(), &lab); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.Conflict(c, "A laboratory with this email already exists")
			return
		}
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Laboratory created successfully", lab)
}

func (h *LaboratoryHandler) GetLaboratories(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	labs, err := h.Store.Laboratories().List(c.Request.Context(), actor.ClinicID, queryBool(c, "includeInactive"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Laboratories fetched successfully", labs)
}

func (h *LaboratoryHandler) GetLaboratoryByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	lab, err := h.Store.Laboratories().FindByID(c.Request.Context(), actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Laboratory fetched successfully", lab)
}

func (h *LaboratoryHandler) UpdateLaboratory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req LaboratoryRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	lab, err := h.Store.Laboratories().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	req.apply(lab)
	if err := h.Store.Laboratories().Update(ctx, lab); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.Conflict(c, "A laboratory with this email already exists")
			return
		}
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Laboratory updated successfully", lab)
}

// DeleteLaboratory is a soft delete; orders keep pointing at the lab.
func (h *LaboratoryHandler) DeleteLaboratory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	lab, err := h.Store.Laboratories().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	lab.Active = false
	if err := h.Store.Laboratories().Update(ctx, lab); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Laboratory deactivated successfully", nil)
}
