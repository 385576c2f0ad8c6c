// Package services holds the two stateful engines: consultation timers and the
// prosthetic order workflow. Handlers call them with an Actor taken from the JWT.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"dental-clinic-server/internal/apperr"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

// Clock returns the current time. Tests substitute a fixed or stepping clock.
type Clock func() time.Time

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	UserID       string
	ClinicID     string
	Role         models.Role
	LaboratoryID *string
}

// Type maps the caller's role onto the side of an order it acts for.
func (a Actor) Type() models.ActorType {
	if a.Role == models.RoleProtetico {
		return models.ActorProtetico
	}
	return models.ActorDentist
}

func (a Actor) canTreat() bool {
	return a.Role == models.RoleDentist || a.Role == models.RoleAdmin
}

var validate = validator.New()

// validateInput runs validator tags and turns failures into a validation error.
func validateInput(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%s", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation("%s", strings.Join(msgs, ", "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// lookupErr converts a repository read failure into an engine error.
func lookupErr(err error, what, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("%s %s not found", what, id)
	}
	return apperr.Internal(err, "failed to load %s", what)
}

// writeErr converts a repository write failure into an engine error.
func writeErr(err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrStaleVersion):
		return apperr.Conflict("%s was modified by another request, reload and retry", what)
	case errors.Is(err, repository.ErrDuplicate):
		return apperr.Conflict("%s already exists", what)
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("%s not found", what)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Internal(err, "failed to save %s", what)
}

// floorSeconds is the whole seconds between from and to, never negative.
func floorSeconds(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
