package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dental-clinic-server/internal/apperr"
	"dental-clinic-server/internal/metrics"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

// Consultation actions accepted by Apply.
const (
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionEnd    = "end"
)

const defaultReturnVisitLength = 30 * time.Minute

// Prontuario is the clinical note submitted when a consultation ends.
type Prontuario struct {
	Procedures   []models.Procedure `json:"procedures"`
	Observations string             `json:"observations"`
}

// ReturnVisit asks for a follow-up appointment once the consultation is completed.
type ReturnVisit struct {
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Notes     string     `json:"notes" validate:"max=2000"`
}

// EndInput carries the optional parts of End.
type EndInput struct {
	Prontuario    *Prontuario  `json:"prontuario"`
	PaymentAmount *float64     `json:"paymentAmount" validate:"omitempty,gte=0"`
	ReturnVisit   *ReturnVisit `json:"returnVisit"`
}

// ConsultationResult is what a mutation returns to the caller.
// ReturnVisitError is set when the follow-up appointment could not be booked;
// the consultation itself is completed regardless.
type ConsultationResult struct {
	Consultation     *models.Consultation  `json:"consultation"`
	MedicalRecord    *models.MedicalRecord `json:"medicalRecord,omitempty"`
	ReturnVisit      *models.Appointment   `json:"returnVisit,omitempty"`
	ReturnVisitError string                `json:"returnVisitError,omitempty"`
}

// ConsultationService runs the start/pause/resume/end timer of a clinical visit.
type ConsultationService struct {
	store   repository.Store
	now     Clock
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewConsultationService(store repository.Store, log zerolog.Logger, m *metrics.Metrics) *ConsultationService {
	return &ConsultationService{
		store:   store,
		now:     time.Now,
		log:     log.With().Str("component", "consultation").Logger(),
		metrics: m,
	}
}

// WithClock replaces the time source.
func (s *ConsultationService) WithClock(clock Clock) *ConsultationService {
	s.now = clock
	return s
}

// Start opens the consultation for an appointment and moves the appointment to IN_PROGRESS.
func (s *ConsultationService) Start(ctx context.Context, actor Actor, appointmentID string) (*models.Consultation, error) {
	if !actor.canTreat() {
		return nil, apperr.Forbidden("only dentists and admins can start a consultation")
	}
	if strings.TrimSpace(appointmentID) == "" {
		return nil, apperr.Validation("appointmentId is required")
	}

	var consultation *models.Consultation
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		appointment, err := tx.Appointments().FindByID(ctx, actor.ClinicID, appointmentID)
		if err != nil {
			return lookupErr(err, "appointment", appointmentID)
		}
		if _, err := tx.Consultations().FindByAppointment(ctx, actor.ClinicID, appointmentID); err == nil {
			return apperr.Conflict("a consultation already exists for appointment %s", appointmentID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return apperr.Internal(err, "failed to check existing consultation")
		}
		switch appointment.Status {
		case models.AppointmentCancelled, models.AppointmentNoShow, models.AppointmentCompleted:
			return apperr.Conflict("appointment %s is %s", appointment.ID, appointment.Status)
		}

		consultation = &models.Consultation{
			AppointmentID: appointment.ID,
			PatientID:     appointment.PatientID,
			DentistID:     appointment.DentistID,
			ClinicID:      actor.ClinicID,
			StartedAt:     s.now(),
			Status:        models.ConsultationInProgress,
			Version:       1,
		}
		if err := tx.Consultations().Create(ctx, consultation); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("a consultation already exists for appointment %s", appointmentID)
			}
			return apperr.Internal(err, "failed to create consultation")
		}
		if err := tx.Appointments().UpdateStatus(ctx, actor.ClinicID, appointment.ID, models.AppointmentInProgress); err != nil {
			return writeErr(err, "appointment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ConsultationStarted()
	s.log.Info().
		Str("consultation_id", consultation.ID).
		Str("appointment_id", appointmentID).
		Str("clinic_id", actor.ClinicID).
		Msg("consultation started")
	return consultation, nil
}

// Pause stops the clock. Pausing an already paused consultation keeps the original pausedAt.
func (s *ConsultationService) Pause(ctx context.Context, actor Actor, id string) (*models.Consultation, error) {
	return s.mutate(ctx, actor, id, func(c *models.Consultation, now time.Time) (bool, error) {
		switch c.Status {
		case models.ConsultationCompleted:
			return false, apperr.Conflict("consultation %s is already completed", c.ID)
		case models.ConsultationPaused:
			return false, nil
		}
		c.Status = models.ConsultationPaused
		c.PausedAt = &now
		return true, nil
	})
}

// Resume folds the open pause interval into pauseTime and restarts the clock.
func (s *ConsultationService) Resume(ctx context.Context, actor Actor, id string) (*models.Consultation, error) {
	return s.mutate(ctx, actor, id, func(c *models.Consultation, now time.Time) (bool, error) {
		if c.Status == models.ConsultationCompleted {
			return false, apperr.Conflict("consultation %s is already completed", c.ID)
		}
		if c.PausedAt != nil {
			c.PauseTime += floorSeconds(*c.PausedAt, now)
			c.PausedAt = nil
		}
		c.Status = models.ConsultationInProgress
		return true, nil
	})
}

func (s *ConsultationService) mutate(ctx context.Context, actor Actor, id string, apply func(*models.Consultation, time.Time) (bool, error)) (*models.Consultation, error) {
	if !actor.canTreat() {
		return nil, apperr.Forbidden("only dentists and admins can change a consultation")
	}
	var consultation *models.Consultation
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		c, err := tx.Consultations().FindByID(ctx, actor.ClinicID, id)
		if err != nil {
			return lookupErr(err, "consultation", id)
		}
		changed, err := apply(c, s.now())
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Consultations().UpdateVersioned(ctx, c, c.Version); err != nil {
				return writeErr(err, "consultation")
			}
		}
		consultation = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("consultation_id", id).Str("status", string(consultation.Status)).Msg("consultation updated")
	return consultation, nil
}

// End completes the consultation, closes the appointment and writes the medical record.
// A requested return visit is booked afterwards in its own transaction.
func (s *ConsultationService) End(ctx context.Context, actor Actor, id string, in EndInput) (*ConsultationResult, error) {
	if !actor.canTreat() {
		return nil, apperr.Forbidden("only dentists and admins can end a consultation")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.ReturnVisit != nil {
		if err := validateReturnVisit(in.ReturnVisit); err != nil {
			return nil, err
		}
	}

	result := &ConsultationResult{}
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		c, err := tx.Consultations().FindByID(ctx, actor.ClinicID, id)
		if err != nil {
			return lookupErr(err, "consultation", id)
		}
		if c.Status == models.ConsultationCompleted {
			return apperr.Conflict("consultation %s is already completed", c.ID)
		}

		now := s.now()
		if c.PausedAt != nil {
			c.PauseTime += floorSeconds(*c.PausedAt, now)
			c.PausedAt = nil
		}
		c.TotalTime = floorSeconds(c.StartedAt, now) - c.PauseTime
		if c.TotalTime < 0 {
			c.TotalTime = 0
		}
		c.Status = models.ConsultationCompleted
		c.EndedAt = &now
		if in.PaymentAmount != nil {
			amount := *in.PaymentAmount
			c.PaymentAmount = &amount
		}
		if err := tx.Consultations().UpdateVersioned(ctx, c, c.Version); err != nil {
			return writeErr(err, "consultation")
		}
		if err := tx.Appointments().UpdateStatus(ctx, actor.ClinicID, c.AppointmentID, models.AppointmentCompleted); err != nil {
			return writeErr(err, "appointment")
		}
		result.Consultation = c

		record := buildMedicalRecord(c, in.Prontuario)
		if record == nil {
			return nil
		}
		if err := tx.MedicalRecords().Create(ctx, record); err != nil {
			return writeErr(err, "medical record")
		}
		result.MedicalRecord = record
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := result.Consultation
	s.metrics.ConsultationCompleted(c.TotalTime)
	s.log.Info().
		Str("consultation_id", c.ID).
		Int64("total_time", c.TotalTime).
		Int64("pause_time", c.PauseTime).
		Bool("medical_record", result.MedicalRecord != nil).
		Msg("consultation completed")

	if in.ReturnVisit != nil {
		appointment, err := s.bookReturnVisit(ctx, c, in.ReturnVisit)
		if err != nil {
			s.log.Error().Err(err).Str("consultation_id", c.ID).Msg("return visit not booked")
			result.ReturnVisitError = err.Error()
		} else {
			result.ReturnVisit = appointment
		}
	}
	return result, nil
}

// buildMedicalRecord keeps only named procedures. No named procedure means no record.
func buildMedicalRecord(c *models.Consultation, p *Prontuario) *models.MedicalRecord {
	if p == nil {
		return nil
	}
	procedures := make([]models.Procedure, 0, len(p.Procedures))
	for _, proc := range p.Procedures {
		if strings.TrimSpace(proc.Name) == "" {
			continue
		}
		procedures = append(procedures, proc)
	}
	if len(procedures) == 0 {
		return nil
	}
	return &models.MedicalRecord{
		ConsultationID: c.ID,
		PatientID:      c.PatientID,
		DentistID:      c.DentistID,
		ClinicID:       c.ClinicID,
		Procedures:     procedures,
		Observations:   p.Observations,
	}
}

func validateReturnVisit(rv *ReturnVisit) error {
	if rv.StartTime.IsZero() {
		return apperr.Validation("returnVisit.startTime is required")
	}
	if rv.EndTime != nil && !rv.EndTime.After(rv.StartTime) {
		return apperr.Validation("returnVisit.endTime must be after returnVisit.startTime")
	}
	return nil
}

func (s *ConsultationService) bookReturnVisit(ctx context.Context, c *models.Consultation, rv *ReturnVisit) (*models.Appointment, error) {
	end := rv.StartTime.Add(defaultReturnVisitLength)
	if rv.EndTime != nil {
		end = *rv.EndTime
	}
	origin := c.ID
	appointment := &models.Appointment{
		ClinicID:             c.ClinicID,
		PatientID:            c.PatientID,
		DentistID:            c.DentistID,
		StartTime:            rv.StartTime,
		EndTime:              end,
		Status:               models.AppointmentScheduled,
		Reason:               "Return visit",
		Notes:                rv.Notes,
		IsReturn:             true,
		OriginConsultationID: &origin,
	}
	if err := s.store.Appointments().Create(ctx, appointment); err != nil {
		return nil, apperr.Internal(err, "failed to book return visit")
	}
	return appointment, nil
}

// Apply dispatches a PATCH action.
func (s *ConsultationService) Apply(ctx context.Context, actor Actor, id, action string, in EndInput) (*ConsultationResult, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionPause:
		c, err := s.Pause(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		return &ConsultationResult{Consultation: c}, nil
	case ActionResume:
		c, err := s.Resume(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		return &ConsultationResult{Consultation: c}, nil
	case ActionEnd:
		return s.End(ctx, actor, id, in)
	default:
		return nil, apperr.Validation("action must be one of pause, resume, end")
	}
}

func (s *ConsultationService) Get(ctx context.Context, actor Actor, id string) (*models.Consultation, error) {
	c, err := s.store.Consultations().FindByID(ctx, actor.ClinicID, id)
	if err != nil {
		return nil, lookupErr(err, "consultation", id)
	}
	return c, nil
}

func (s *ConsultationService) GetByAppointment(ctx context.Context, actor Actor, appointmentID string) (*models.Consultation, error) {
	c, err := s.store.Consultations().FindByAppointment(ctx, actor.ClinicID, appointmentID)
	if err != nil {
		return nil, lookupErr(err, "consultation for appointment", appointmentID)
	}
	return c, nil
}

// List returns the clinic's consultations, newest first, optionally by status.
func (s *ConsultationService) List(ctx context.Context, actor Actor, status string) ([]models.Consultation, error) {
	st := models.ConsultationStatus(strings.ToUpper(strings.TrimSpace(status)))
	switch st {
	case "", models.ConsultationInProgress, models.ConsultationPaused, models.ConsultationCompleted:
	default:
		return nil, apperr.Validation("unknown consultation status %q", status)
	}
	consultations, err := s.store.Consultations().List(ctx, actor.ClinicID, st)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list consultations")
	}
	return consultations, nil
}
