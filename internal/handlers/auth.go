package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/middleware"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
	"dental-clinic-server/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	Store repository.Store
	Cfg   *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store repository.Store, cfg *config.Config) *AuthHandler {
	return &AuthHandler{Store: store, Cfg: cfg}
}

// RegisterClinicRequest onboards a clinic together with its first admin.
type RegisterClinicRequest struct {
	ClinicName  string `json:"clinicName" binding:"required"`
	ClinicEmail string `json:"clinicEmail" binding:"omitempty,email"`
	ClinicPhone string `json:"clinicPhone"`
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

// RegisterClinicResponse is returned after onboarding.
type RegisterClinicResponse struct {
	Clinic models.Clinic        `json:"clinic"`
	User   models.UserSanitized `json:"user"`
}

// RegisterClinic creates a clinic and its admin account.
func (h *AuthHandler) RegisterClinic(c *gin.Context) {
	var req RegisterClinicRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	clinic := models.Clinic{
		Name:   strings.TrimSpace(req.ClinicName),
		Email:  req.ClinicEmail,
		Phone:  req.ClinicPhone,
		Active: true,
	}
	admin := models.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Role:      models.RoleAdmin,
		Active:    true,
	}
	if err := admin.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password")
		return
	}

	ctx := c.Request.Context()
	err := h.Store.Atomic(ctx, func(tx repository.Store) error {
		if err := tx.Clinics().Create(ctx, &clinic); err != nil {
			return err
		}
		admin.ClinicID = clinic.ID
		return tx.Users().Create(ctx, &admin)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		utils.Conflict(c, "User with this email already exists")
		return
	}
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, "Clinic registered successfully", RegisterClinicResponse{Clinic: clinic, User: admin.Sanitize()})
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Store.Users().FindByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if errors.Is(err, repository.ErrNotFound) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if !user.Active || !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	accessToken, refreshToken, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	})
}

// issueTokens signs a token pair, stores the refresh token and sets the cookie.
func (h *AuthHandler) issueTokens(c *gin.Context, user *models.User) (string, string, bool) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		utils.HandleError(c, err)
		return "", "", false
	}
	stored := models.RefreshToken{
		UserID:    user.ID,
		ClinicID:  user.ClinicID,
		Token:     refreshToken,
		ExpiresAt: utils.RefreshExpiry(h.Cfg, time.Now()),
	}
	if err := h.Store.RefreshTokens().Create(c.Request.Context(), &stored); err != nil {
		utils.HandleError(c, err)
		return "", "", false
	}
	c.SetCookie(refreshCookie, refreshToken, h.Cfg.JWTRefreshExpirationHours*60*60, "/", "", h.Cfg.IsProduction(), true)
	return accessToken, refreshToken, true
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken rotates the refresh token and issues a new access token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	claims, err := utils.ValidateToken(token, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	ctx := c.Request.Context()
	stored, err := h.Store.RefreshTokens().FindActive(ctx, token, claims.UserID, time.Now())
	if errors.Is(err, repository.ErrNotFound) {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	user, err := h.Store.Users().FindByID(ctx, claims.ClinicID, claims.UserID)
	if err != nil || !user.Active {
		utils.Unauthorized(c, "User is no longer active")
		return
	}
	if err := h.Store.RefreshTokens().Revoke(ctx, stored.ID, time.Now()); err != nil {
		utils.HandleError(c, err)
		return
	}

	accessToken, refreshToken, ok := h.issueTokens(c, user)
	if !ok {
		return
	}
	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Logout revokes the refresh token. Unknown tokens are not an error.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	stored, err := h.Store.RefreshTokens().FindUnrevoked(ctx, req.RefreshToken)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.Success(c, "Logout successful (token not found or already invalid).", nil)
		return
	case err != nil:
		utils.HandleError(c, err)
		return
	}
	if err := h.Store.RefreshTokens().Revoke(ctx, stored.ID, time.Now()); err != nil {
		utils.HandleError(c, err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", h.Cfg.IsProduction(), true)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	user, err := h.Store.Users().FindByID(c.Request.Context(), actor.ClinicID, actor.UserID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
type UpdateProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	CRO         string `json:"cro"`
}

// UpdateProfile updates the caller's own name and contact fields.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)
	clinicID, ok := middleware.GetClinicIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.Store.Users().FindByID(ctx, clinicID, userID)
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
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.CRO != "" {
		user.CRO = req.CRO
	}
	if err := h.Store.Users().Update(ctx, user); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}
