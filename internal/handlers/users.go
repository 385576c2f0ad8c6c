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

// UserHandler manages clinic staff and laboratory accounts.
type UserHandler struct {
	Store repository.Store
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store repository.Store) *UserHandler {
	return &UserHandler{Store: store}
}

// CreateUserRequest represents the request body for creating a user by an admin.
// LaboratoryID is required for PROTETICO accounts and ignored otherwise.
type CreateUserRequest struct {
	FirstName    string `json:"firstName" binding:"required"`
	LastName     string `json:"lastName"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	Role         string `json:"role" binding:"required,oneof=ADMIN DENTIST RECEPTIONIST PROTETICO"`
	PhoneNumber  string `json:"phoneNumber"`
	CRO          string `json:"cro"`
	LaboratoryID string `json:"laboratoryId"`
}

func sanitizeAll(users []models.User) []models.UserSanitized {
	out := make([]models.UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out
}

// resolveLaboratory checks the lab link of a PROTETICO account.
func (h *UserHandler) resolveLaboratory(c *gin.Context, clinicID string, role models.Role, labID string) (*string, bool) {
	if role != models.RoleProtetico {
		return nil, true
	}
	if labID == "" {
		utils.BadRequest(c, "laboratoryId is required for PROTETICO users")
		return nil, false
	}
	lab, err := h.Store.Laboratories().FindByID(c.Request.Context(), clinicID, labID)
	if errors.Is(err, repository.ErrNotFound) {
		utils.NotFound(c, "Laboratory not found")
		return nil, false
	}
	if err != nil {
		utils.HandleError(c, err)
		return nil, false
	}
	return &lab.ID, true
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	role := models.Role(req.Role)
	labID, ok := h.resolveLaboratory(c, actor.ClinicID, role, req.LaboratoryID)
	if !ok {
		return
	}

	user := models.User{
		ClinicID:     actor.ClinicID,
		LaboratoryID: labID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Role:         role,
		PhoneNumber:  req.PhoneNumber,
		CRO:          req.CRO,
		Active:       true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password")
		return
	}

	if err := h.Store.Users().Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.Conflict(c, "User with this email already exists")
			return
		}
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers lists the clinic's users, optionally by ?role=.
func (h *UserHandler) GetUsers(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	role := models.Role(strings.ToUpper(c.Query("role")))
	users, err := h.Store.Users().List(c.Request.Context(), actor.ClinicID, role)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Users fetched successfully", sanitizeAll(users))
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	user, err := h.Store.Users().FindByID(c.Request.Context(), actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
type UpdateUserRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email" binding:"omitempty,email"`
	Role         string `json:"role" binding:"omitempty,oneof=ADMIN DENTIST RECEPTIONIST PROTETICO"`
	PhoneNumber  string `json:"phoneNumber"`
	CRO          string `json:"cro"`
	LaboratoryID string `json:"laboratoryId"`
	Active       *bool  `json:"active"`
}

// UpdateUser handles updating a user by ID (admin).
func (h *UserHandler) UpdateUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Users().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" {
		user.Email = strings.ToLower(strings.TrimSpace(req.Email))
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.CRO != "" {
		user.CRO = req.CRO
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Role != "" {
		user.Role = models.Role(req.Role)
	}
	labRef := req.LaboratoryID
	if labRef == "" && user.LaboratoryID != nil {
		labRef = *user.LaboratoryID
	}
	labID, ok := h.resolveLaboratory(c, actor.ClinicID, user.Role, labRef)
	if !ok {
		return
	}
	user.LaboratoryID = labID

	if err := h.Store.Users().Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			utils.Conflict(c, "New email is already in use")
			return
		}
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser deactivates a user and revokes their sessions. Users are referenced
// by history rows and are never removed.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if c.Param("id") == actor.UserID {
		utils.BadRequest(c, "You cannot deactivate your own account")
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Users().FindByID(ctx, actor.ClinicID, c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	user.Active = false
	var revoked int64
	err = h.Store.Atomic(ctx, func(tx repository.Store) error {
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		revoked, err = tx.RefreshTokens().RevokeForUser(ctx, user.ID, time.Now())
		return err
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "User deactivated successfully", gin.H{"revokedSessions": revoked})
}

// GetDentists lists the clinic's active dentists for scheduling screens.
func (h *UserHandler) GetDentists(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	users, err := h.Store.Users().List(c.Request.Context(), actor.ClinicID, models.RoleDentist)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	active := users[:0]
	for _, u := range users {
		if u.Active {
			active = append(active, u)
		}
	}
	utils.Success(c, "Dentists fetched successfully", sanitizeAll(active))
}
