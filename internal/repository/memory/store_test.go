package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("boom")

	err := store.Atomic(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.Patients().Create(ctx, &models.Patient{ClinicID: "c1", Name: "Ana", Active: true}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	patients, err := store.Patients().List(ctx, "c1", repository.PatientFilter{})
	require.NoError(t, err)
	assert.Empty(t, patients)
}

func TestRollbackKeepsWritesMadeOutsideTheTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	boom := errors.New("boom")

	inside := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- store.Atomic(ctx, func(tx repository.Store) error {
			if err := tx.Patients().Create(ctx, &models.Patient{ClinicID: "c1", Name: "Rolled back", Active: true}); err != nil {
				return err
			}
			close(inside)
			<-release
			return boom
		})
	}()
	<-inside

	outside := &models.Patient{ClinicID: "c1", Name: "Bruna", Active: true}
	created := make(chan error, 1)
	go func() { created <- store.Patients().Create(ctx, outside) }()

	select {
	case err := <-created:
		t.Fatalf("write outside the transaction finished while it was open: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.ErrorIs(t, <-txDone, boom)
	require.NoError(t, <-created)

	found, err := store.Patients().FindByID(ctx, "c1", outside.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bruna", found.Name)

	patients, err := store.Patients().List(ctx, "c1", repository.PatientFilter{})
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestAtomicCommits(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.Atomic(ctx, func(tx repository.Store) error {
		return tx.Patients().Create(ctx, &models.Patient{ClinicID: "c1", Name: "Ana", Active: true})
	})
	require.NoError(t, err)

	patients, err := store.Patients().List(ctx, "c1", repository.PatientFilter{})
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestTenantScoping(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	patient := &models.Patient{ClinicID: "c1", Name: "Ana", Active: true}
	require.NoError(t, store.Patients().Create(ctx, patient))

	_, err := store.Patients().FindByID(ctx, "c2", patient.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	order := &models.ProstheticOrder{ClinicID: "c1", PatientID: patient.ID, WorkType: models.WorkCrown, Status: models.OrderPending, Version: 1}
	require.NoError(t, store.Orders().Create(ctx, order))
	require.NoError(t, store.Orders().AppendHistory(ctx, &models.ProstheticOrderHistoryEntry{
		RequestID: order.ID, NewStatus: models.OrderReceived, ChangedByType: models.ActorDentist,
	}))

	history, err := store.Orders().ListHistory(ctx, "c2", order.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	history, err = store.Orders().ListHistory(ctx, "c1", order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHistoryTiesFollowSequence(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	order := &models.ProstheticOrder{ClinicID: "c1", PatientID: "p1", WorkType: models.WorkCrown, Status: models.OrderPending, Version: 1}
	require.NoError(t, store.Orders().Create(ctx, order))

	at := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	for _, step := range []struct {
		seq    int64
		status models.OrderStatus
	}{
		{4, models.OrderProduction},
		{2, models.OrderReceived},
		{3, models.OrderAnalysis},
	} {
		entry := &models.ProstheticOrderHistoryEntry{
			RequestID: order.ID, NewStatus: step.status, ChangedByType: models.ActorProtetico, Sequence: step.seq,
		}
		entry.CreatedAt = at
		require.NoError(t, store.Orders().AppendHistory(ctx, entry))
	}

	history, err := store.Orders().ListHistory(ctx, "c1", order.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.OrderReceived, history[0].NewStatus)
	assert.Equal(t, models.OrderAnalysis, history[1].NewStatus)
	assert.Equal(t, models.OrderProduction, history[2].NewStatus)
}

func TestConsultationUniquePerAppointment(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first := &models.Consultation{ClinicID: "c1", AppointmentID: "a1", Status: models.ConsultationInProgress, Version: 1}
	require.NoError(t, store.Consultations().Create(ctx, first))

	err := store.Consultations().Create(ctx, &models.Consultation{ClinicID: "c1", AppointmentID: "a1", Version: 1})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestConsultationUpdateVersioned(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	c := &models.Consultation{ClinicID: "c1", AppointmentID: "a1", Status: models.ConsultationInProgress, StartedAt: time.Now(), Version: 1}
	require.NoError(t, store.Consultations().Create(ctx, c))

	stale := *c
	c.Status = models.ConsultationPaused
	require.NoError(t, store.Consultations().UpdateVersioned(ctx, c, 1))
	assert.Equal(t, int64(2), c.Version)

	stale.Status = models.ConsultationCompleted
	err := store.Consultations().UpdateVersioned(ctx, &stale, 1)
	assert.ErrorIs(t, err, repository.ErrStaleVersion)

	stored, err := store.Consultations().FindByID(ctx, "c1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConsultationPaused, stored.Status)
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	event := &models.OutboxEvent{AggregateType: "prosthetic_order", AggregateID: "o1", EventType: "order.created"}
	require.NoError(t, store.Outbox().Create(ctx, event))

	require.NoError(t, store.Outbox().MarkFailed(ctx, event.ID, "broker down"))
	pending, err := store.Outbox().ListPending(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "events at max retries are skipped")

	now := time.Now()
	require.NoError(t, store.Outbox().MarkProcessed(ctx, event.ID, now, now))
	count, err := store.Outbox().CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	purged, err := store.Outbox().PurgeProcessed(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestRefreshTokenRevocation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	for _, tok := range []string{"a", "b"} {
		require.NoError(t, store.RefreshTokens().Create(ctx, &models.RefreshToken{
			UserID: "u1", ClinicID: "c1", Token: tok, ExpiresAt: now.Add(time.Hour),
		}))
	}

	active, err := store.RefreshTokens().FindActive(ctx, "a", "u1", now)
	require.NoError(t, err)
	_, err = store.RefreshTokens().FindActive(ctx, "a", "u1", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, repository.ErrNotFound, "expired")

	require.NoError(t, store.RefreshTokens().Revoke(ctx, active.ID, now))
	_, err = store.RefreshTokens().FindUnrevoked(ctx, "a")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	n, err := store.RefreshTokens().RevokeForUser(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = store.RefreshTokens().FindActive(ctx, "b", "u1", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
