package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic-server/internal/apperr"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

func TestStartConsultation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.consultations().Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ConsultationInProgress, c.Status)
	assert.Equal(t, f.clock.Now(), c.StartedAt)
	assert.Equal(t, int64(0), c.TotalTime)
	assert.Equal(t, int64(0), c.PauseTime)
	assert.Equal(t, int64(1), c.Version)
	assert.Equal(t, f.patient.ID, c.PatientID)

	appointment, err := f.store.Appointments().FindByID(ctx, f.clinicID, f.appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentInProgress, appointment.Status)
}

func TestStartTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	_, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	_, err = svc.Start(ctx, f.dentist, f.appointment.ID)
	assertKind(t, err, apperr.KindConflict)

	all, err := svc.List(ctx, f.dentist, "")
	require.NoError(t, err)
	count := 0
	for _, c := range all {
		if c.AppointmentID == f.appointment.ID {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStartErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	receptionist := f.dentist
	receptionist.Role = models.RoleReceptionist
	_, err := svc.Start(ctx, receptionist, f.appointment.ID)
	assertKind(t, err, apperr.KindForbidden)

	_, err = svc.Start(ctx, f.dentist, "")
	assertKind(t, err, apperr.KindValidation)

	_, err = svc.Start(ctx, f.dentist, "missing")
	assertKind(t, err, apperr.KindNotFound)

	otherClinic := f.dentist
	otherClinic.ClinicID = "another-clinic"
	_, err = svc.Start(ctx, otherClinic, f.appointment.ID)
	assertKind(t, err, apperr.KindNotFound)
}

func TestStartRejectsClosedAppointments(t *testing.T) {
	ctx := context.Background()
	for _, status := range []models.AppointmentStatus{
		models.AppointmentCancelled,
		models.AppointmentNoShow,
		models.AppointmentCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.store.Appointments().UpdateStatus(ctx, f.clinicID, f.appointment.ID, status))

			_, err := f.consultations().Start(ctx, f.dentist, f.appointment.ID)
			assertKind(t, err, apperr.KindConflict)

			_, err = f.store.Consultations().FindByAppointment(ctx, f.clinicID, f.appointment.ID)
			assert.ErrorIs(t, err, repository.ErrNotFound)
			appointment, err := f.store.Appointments().FindByID(ctx, f.clinicID, f.appointment.ID)
			require.NoError(t, err)
			assert.Equal(t, status, appointment.Status)
		})
	}

	f := newFixture(t)
	require.NoError(t, f.store.Appointments().UpdateStatus(ctx, f.clinicID, f.appointment.ID, models.AppointmentScheduled))
	_, err := f.consultations().Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)
}

func TestPauseResumeEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationInProgress, c.Status)

	f.clock.Advance(5 * time.Minute)
	c, err = svc.Pause(ctx, f.dentist, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationPaused, c.Status)
	require.NotNil(t, c.PausedAt)

	f.clock.Advance(10 * time.Second)
	c, err = svc.Resume(ctx, f.dentist, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), c.PauseTime)
	assert.Nil(t, c.PausedAt)
	assert.Equal(t, models.ConsultationInProgress, c.Status)

	f.clock.Advance(20 * time.Minute)
	res, err := svc.End(ctx, f.dentist, c.ID, EndInput{
		Prontuario: &Prontuario{Procedures: []models.Procedure{{Name: "Limpeza", Tooth: "36"}}},
	})
	require.NoError(t, err)

	done := res.Consultation
	assert.Equal(t, models.ConsultationCompleted, done.Status)
	require.NotNil(t, done.EndedAt)
	totalElapsed := int64(done.EndedAt.Sub(done.StartedAt) / time.Second)
	assert.Equal(t, totalElapsed-10, done.TotalTime)
	require.NotNil(t, res.MedicalRecord)

	records, err := f.store.MedicalRecords().ListByPatient(ctx, f.clinicID, f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	appointment, err := f.store.Appointments().FindByID(ctx, f.clinicID, f.appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, appointment.Status)
}

func TestTotalTimeExcludesEveryPause(t *testing.T) {
	tests := []struct {
		name      string
		active    []time.Duration
		pauses    []time.Duration
		wantPause int64
	}{
		{name: "no pauses", active: []time.Duration{90 * time.Second}, wantPause: 0},
		{
			name:      "single pause",
			active:    []time.Duration{time.Minute, time.Minute},
			pauses:    []time.Duration{30 * time.Second},
			wantPause: 30,
		},
		{
			name:      "fractional pauses are floored each time",
			active:    []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second},
			pauses:    []time.Duration{1500 * time.Millisecond, 2700 * time.Millisecond},
			wantPause: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			svc := f.consultations()

			c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
			require.NoError(t, err)

			for i, run := range tt.active {
				f.clock.Advance(run)
				if i < len(tt.pauses) {
					_, err = svc.Pause(ctx, f.dentist, c.ID)
					require.NoError(t, err)
					f.clock.Advance(tt.pauses[i])
					_, err = svc.Resume(ctx, f.dentist, c.ID)
					require.NoError(t, err)
				}
			}

			res, err := svc.End(ctx, f.dentist, c.ID, EndInput{})
			require.NoError(t, err)
			done := res.Consultation
			assert.Equal(t, tt.wantPause, done.PauseTime)
			elapsed := int64(done.EndedAt.Sub(done.StartedAt) / time.Second)
			assert.Equal(t, elapsed-done.PauseTime, done.TotalTime)
		})
	}
}

func TestEndWhilePausedCountsOpenPause(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)
	_, err = svc.Pause(ctx, f.dentist, c.ID)
	require.NoError(t, err)
	f.clock.Advance(45 * time.Second)

	res, err := svc.End(ctx, f.dentist, c.ID, EndInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(45), res.Consultation.PauseTime)
	assert.Equal(t, int64(120), res.Consultation.TotalTime)
	assert.Nil(t, res.Consultation.PausedAt)
}

func TestPauseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)
	first, err := svc.Pause(ctx, f.dentist, c.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := svc.Pause(ctx, f.dentist, c.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.PausedAt, *second.PausedAt)
	assert.Equal(t, first.Version, second.Version)
}

func TestResumeWithoutPauseOnlySetsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)

	c, err = svc.Resume(ctx, f.dentist, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationInProgress, c.Status)
	assert.Equal(t, int64(0), c.PauseTime)
}

func TestCompletedConsultationRejectsChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)
	_, err = svc.End(ctx, f.dentist, c.ID, EndInput{})
	require.NoError(t, err)

	_, err = svc.Pause(ctx, f.dentist, c.ID)
	assertKind(t, err, apperr.KindConflict)
	_, err = svc.Resume(ctx, f.dentist, c.ID)
	assertKind(t, err, apperr.KindConflict)
	_, err = svc.End(ctx, f.dentist, c.ID, EndInput{})
	assertKind(t, err, apperr.KindConflict)
}

func TestEndMedicalRecord(t *testing.T) {
	tests := []struct {
		name       string
		prontuario *Prontuario
		want       []models.Procedure
	}{
		{
			name:       "round trip",
			prontuario: &Prontuario{Procedures: []models.Procedure{{Name: "Limpeza", Tooth: "36"}}},
			want:       []models.Procedure{{Name: "Limpeza", Tooth: "36"}},
		},
		{
			name:       "empty procedures",
			prontuario: &Prontuario{Procedures: []models.Procedure{}, Observations: "nothing done"},
		},
		{name: "no prontuario"},
		{
			name: "unnamed procedures are dropped",
			prontuario: &Prontuario{Procedures: []models.Procedure{
				{Name: "  ", Tooth: "11"},
				{Name: "Restauração", Tooth: "21", Notes: "resina"},
			}},
			want: []models.Procedure{{Name: "Restauração", Tooth: "21", Notes: "resina"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			svc := f.consultations()

			c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
			require.NoError(t, err)
			res, err := svc.End(ctx, f.dentist, c.ID, EndInput{Prontuario: tt.prontuario})
			require.NoError(t, err)

			record, err := f.store.MedicalRecords().FindByConsultation(ctx, f.clinicID, c.ID)
			if tt.want == nil {
				assert.Nil(t, res.MedicalRecord)
				assert.ErrorIs(t, err, repository.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, []models.Procedure(record.Procedures))
			assert.Equal(t, f.dentist.UserID, record.DentistID)
		})
	}
}

func TestEndPaymentAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	negative := -1.0
	_, err = svc.End(ctx, f.dentist, c.ID, EndInput{PaymentAmount: &negative})
	assertKind(t, err, apperr.KindValidation)

	amount := 250.5
	res, err := svc.End(ctx, f.dentist, c.ID, EndInput{PaymentAmount: &amount})
	require.NoError(t, err)
	require.NotNil(t, res.Consultation.PaymentAmount)
	assert.Equal(t, 250.5, *res.Consultation.PaymentAmount)
}

func TestEndBooksReturnVisit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	when := f.clock.Now().AddDate(0, 0, 14)
	res, err := svc.End(ctx, f.dentist, c.ID, EndInput{ReturnVisit: &ReturnVisit{StartTime: when, Notes: "check healing"}})
	require.NoError(t, err)
	require.NotNil(t, res.ReturnVisit)
	assert.Empty(t, res.ReturnVisitError)
	assert.True(t, res.ReturnVisit.IsReturn)
	assert.Equal(t, when.Add(30*time.Minute), res.ReturnVisit.EndTime)
	require.NotNil(t, res.ReturnVisit.OriginConsultationID)
	assert.Equal(t, c.ID, *res.ReturnVisit.OriginConsultationID)
}

func TestEndRejectsMalformedReturnVisit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	start := f.clock.Now().Add(24 * time.Hour)
	before := start.Add(-time.Hour)
	_, err = svc.End(ctx, f.dentist, c.ID, EndInput{ReturnVisit: &ReturnVisit{StartTime: start, EndTime: &before}})
	assertKind(t, err, apperr.KindValidation)

	still, err := svc.Get(ctx, f.dentist, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationInProgress, still.Status)
}

// failingAppointments rejects appointment creation outside a transaction.
type failingAppointments struct {
	repository.Store
}

func (s failingAppointments) Appointments() repository.AppointmentRepository {
	return rejectCreate{s.Store.Appointments()}
}

type rejectCreate struct {
	repository.AppointmentRepository
}

func (rejectCreate) Create(context.Context, *models.Appointment) error {
	return errors.New("calendar unavailable")
}

func TestReturnVisitFailureKeepsConsultationCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewConsultationService(failingAppointments{f.store}, zerolog.Nop(), nil).WithClock(f.clock.Now)

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	res, err := svc.End(ctx, f.dentist, c.ID, EndInput{ReturnVisit: &ReturnVisit{StartTime: f.clock.Now().Add(48 * time.Hour)}})
	require.NoError(t, err)
	assert.Nil(t, res.ReturnVisit)
	assert.Contains(t, res.ReturnVisitError, "calendar unavailable")

	stored, err := f.store.Consultations().FindByID(ctx, f.clinicID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationCompleted, stored.Status)
}

func TestApplyDispatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	res, err := svc.Apply(ctx, f.dentist, c.ID, "PAUSE", EndInput{})
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationPaused, res.Consultation.Status)

	_, err = svc.Apply(ctx, f.dentist, c.ID, "stop", EndInput{})
	assertKind(t, err, apperr.KindValidation)

	_, err = svc.Apply(ctx, f.dentist, "missing", ActionResume, EndInput{})
	assertKind(t, err, apperr.KindNotFound)
}

func TestConsultationReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.consultations()

	c, err := svc.Start(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)

	byAppointment, err := svc.GetByAppointment(ctx, f.dentist, f.appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byAppointment.ID)

	inProgress, err := svc.List(ctx, f.dentist, "in_progress")
	require.NoError(t, err)
	assert.Len(t, inProgress, 1)

	completed, err := svc.List(ctx, f.dentist, string(models.ConsultationCompleted))
	require.NoError(t, err)
	assert.Empty(t, completed)

	_, err = svc.List(ctx, f.dentist, "sleeping")
	assertKind(t, err, apperr.KindValidation)

	stranger := f.dentist
	stranger.ClinicID = "elsewhere"
	_, err = svc.Get(ctx, stranger, c.ID)
	assertKind(t, err, apperr.KindNotFound)
}
