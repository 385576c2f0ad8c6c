package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic-server/internal/apperr"
	"dental-clinic-server/internal/models"
)

func (f *fixture) crownOrder(t *testing.T, withLab bool) *models.ProstheticOrder {
	t.Helper()
	in := OrderInput{PatientID: f.patient.ID, WorkType: models.WorkCrown, Urgency: models.UrgencyNormal, Shade: "A2"}
	if withLab {
		labID := f.lab.ID
		in.LaboratoryID = &labID
	}
	order, err := f.orders().Create(context.Background(), f.dentist, in)
	require.NoError(t, err)
	return order
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		current   models.OrderStatus
		requested string
		want      models.OrderStatus
		wantErr   bool
	}{
		{models.OrderPending, "received", models.OrderReceived, false},
		{models.OrderPending, "delivered", models.OrderDelivered, false},
		{models.OrderDelivered, "pending", models.OrderPending, false},
		{models.OrderProduction, " Adjustment ", models.OrderAdjustment, false},
		{models.OrderAdjustment, "assembly", models.OrderAssembly, false},
		{models.OrderPending, "shipped", models.OrderPending, true},
		{models.OrderPending, "", models.OrderPending, true},
	}
	for _, tt := range tests {
		got, err := NextStatus(tt.current, tt.requested)
		if tt.wantErr {
			assertKind(t, err, apperr.KindValidation)
		} else {
			require.NoError(t, err)
		}
		assert.Equal(t, tt.want, got, "%s -> %q", tt.current, tt.requested)
	}
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	order := f.crownOrder(t, true)

	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, f.dentist.UserID, order.DentistID)
	assert.Equal(t, f.clinicID, order.ClinicID)
	assert.Equal(t, int64(1), order.Version)

	history, err := f.orders().History(context.Background(), f.dentist, order.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	notes, err := f.store.Notifications().ListForRecipient(context.Background(), f.clinicID, models.ActorProtetico, f.lab.ID, true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotifyOrderCreated, notes[0].Kind)

	pending, err := f.store.Outbox().ListPending(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, EventOrderCreated, pending[0].EventType)
	assert.Equal(t, order.ID, pending[0].AggregateID)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	missingLab := "no-such-lab"

	tests := []struct {
		name string
		in   OrderInput
		kind apperr.Kind
	}{
		{"other without custom description", OrderInput{PatientID: f.patient.ID, WorkType: models.WorkOther}, apperr.KindValidation},
		{"missing patient", OrderInput{WorkType: models.WorkCrown}, apperr.KindValidation},
		{"missing work type", OrderInput{PatientID: f.patient.ID}, apperr.KindValidation},
		{"unknown work type", OrderInput{PatientID: f.patient.ID, WorkType: "tiara"}, apperr.KindValidation},
		{"unknown urgency", OrderInput{PatientID: f.patient.ID, WorkType: models.WorkCrown, Urgency: "asap"}, apperr.KindValidation},
		{"unknown patient", OrderInput{PatientID: "ghost", WorkType: models.WorkCrown}, apperr.KindNotFound},
		{"unknown laboratory", OrderInput{PatientID: f.patient.ID, WorkType: models.WorkCrown, LaboratoryID: &missingLab}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, f.dentist, tt.in)
			assertKind(t, err, tt.kind)
		})
	}

	orders, err := svc.List(ctx, f.dentist, OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()

	custom, err := svc.Create(ctx, f.dentist, OrderInput{PatientID: f.patient.ID, WorkType: models.WorkOther, WorkTypeCustom: " Protocolo "})
	require.NoError(t, err)
	assert.Equal(t, "Protocolo", custom.WorkTypeCustom)
	assert.Equal(t, models.UrgencyNormal, custom.Urgency)

	inactive := &models.Laboratory{ClinicID: f.clinicID, Name: "Closed", Email: "closed@lab.test", Active: false}
	require.NoError(t, f.store.Laboratories().Create(ctx, inactive))
	_, err = svc.Create(ctx, f.dentist, OrderInput{PatientID: f.patient.ID, WorkType: models.WorkCrown, LaboratoryID: &inactive.ID})
	assertKind(t, err, apperr.KindValidation)

	lab := f.labUser(t, f.lab.ID)
	_, err = svc.Create(ctx, lab, OrderInput{PatientID: f.patient.ID, WorkType: models.WorkCrown})
	assertKind(t, err, apperr.KindForbidden)
}

func TestOrderPipelineScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	order := f.crownOrder(t, false)

	for _, status := range []string{"received", "production", "delivered"} {
		_, err := svc.UpdateStatus(ctx, f.dentist, order.ID, status, "")
		require.NoError(t, err)
	}

	detail, err := svc.Get(ctx, f.dentist, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderDelivered, detail.Order.Status)
	require.Len(t, detail.History, 3)

	want := [][2]models.OrderStatus{
		{models.OrderPending, models.OrderReceived},
		{models.OrderReceived, models.OrderProduction},
		{models.OrderProduction, models.OrderDelivered},
	}
	for i, entry := range detail.History {
		require.NotNil(t, entry.PreviousStatus)
		assert.Equal(t, want[i][0], *entry.PreviousStatus)
		assert.Equal(t, want[i][1], entry.NewStatus)
		assert.Equal(t, models.ActorDentist, entry.ChangedByType)
	}
	require.NotNil(t, detail.Progress)
	assert.Equal(t, 100, *detail.Progress)
}

func TestEveryStatusUpdateAppendsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	order := f.crownOrder(t, true)
	lab := f.labUser(t, f.lab.ID)

	sequence := []struct {
		actor  Actor
		status string
	}{
		{lab, "received"},
		{lab, "assembly"},
		{f.dentist, "adjustment"},
		{lab, "analysis"},
		{lab, "analysis"},
		{f.dentist, "pending"},
		{lab, "ready"},
	}

	previous := models.OrderPending
	for _, step := range sequence {
		updated, err := svc.UpdateStatus(ctx, step.actor, order.ID, step.status, "step")
		require.NoError(t, err)

		history, err := svc.History(ctx, f.dentist, order.ID)
		require.NoError(t, err)
		last := history[len(history)-1]
		require.NotNil(t, last.PreviousStatus)
		assert.Equal(t, previous, *last.PreviousStatus)
		assert.Equal(t, models.OrderStatus(step.status), last.NewStatus)
		assert.Equal(t, step.actor.Type(), last.ChangedByType)
		assert.Equal(t, step.actor.UserID, last.ChangedByID)
		assert.Equal(t, updated.Version, last.Sequence)
		previous = updated.Status
	}

	history, err := svc.History(ctx, f.dentist, order.ID)
	require.NoError(t, err)
	assert.Len(t, history, len(sequence))
	for i := 1; i < len(history); i++ {
		assert.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt))
		assert.Greater(t, history[i].Sequence, history[i-1].Sequence)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	order := f.crownOrder(t, false)

	_, err := svc.UpdateStatus(ctx, f.dentist, order.ID, "lost", "")
	assertKind(t, err, apperr.KindValidation)

	_, err = svc.UpdateStatus(ctx, f.dentist, "missing", "received", "")
	assertKind(t, err, apperr.KindNotFound)

	history, err := svc.History(ctx, f.dentist, order.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMarkAdjustment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	order := f.crownOrder(t, true)

	_, err := svc.UpdateStatus(ctx, f.dentist, order.ID, "production", "")
	require.NoError(t, err)
	adjusted, err := svc.MarkAdjustment(ctx, f.dentist, order.ID, "contact point too tight")
	require.NoError(t, err)
	assert.Equal(t, models.OrderAdjustment, adjusted.Status)

	detail, err := svc.Get(ctx, f.dentist, order.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Progress)
	last := detail.History[len(detail.History)-1]
	assert.Equal(t, "contact point too tight", last.Notes)

	back, err := svc.UpdateStatus(ctx, f.dentist, order.ID, "production", "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderProduction, back.Status)
}

func TestStatusChangeNotifiesOtherParty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	order := f.crownOrder(t, true)
	lab := f.labUser(t, f.lab.ID)

	_, err := svc.UpdateStatus(ctx, lab, order.ID, "received", "")
	require.NoError(t, err)
	forDentist, err := f.store.Notifications().ListForRecipient(ctx, f.clinicID, models.ActorDentist, f.dentist.UserID, false)
	require.NoError(t, err)
	require.Len(t, forDentist, 1)
	assert.Equal(t, models.NotifyOrderStatusChanged, forDentist[0].Kind)
	assert.Equal(t, order.ID, forDentist[0].ReferenceID)

	_, err = svc.UpdateStatus(ctx, f.dentist, order.ID, "analysis", "")
	require.NoError(t, err)
	forLab, err := f.store.Notifications().ListForRecipient(ctx, f.clinicID, models.ActorProtetico, f.lab.ID, false)
	require.NoError(t, err)
	assert.Len(t, forLab, 2)

	events, err := f.store.Outbox().ListPending(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	var payload orderEvent
	require.NoError(t, json.Unmarshal(events[2].Payload, &payload))
	assert.Equal(t, EventOrderStatusChanged, events[2].EventType)
	assert.Equal(t, models.OrderAnalysis, payload.Status)
	require.NotNil(t, payload.PreviousStatus)
	assert.Equal(t, models.OrderReceived, *payload.PreviousStatus)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	order := f.crownOrder(t, true)
	lab := f.labUser(t, f.lab.ID)

	before, err := svc.Comments(ctx, f.dentist, order.ID)
	require.NoError(t, err)

	comment, err := svc.AddComment(ctx, lab, order.ID, "  Need a new impression  ")
	require.NoError(t, err)
	assert.Equal(t, models.ActorProtetico, comment.AuthorType)
	assert.Equal(t, "Need a new impression", comment.Message)

	after, err := svc.Comments(ctx, f.dentist, order.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
	assert.Equal(t, models.ActorProtetico, after[len(after)-1].AuthorType)

	detail, err := svc.Get(ctx, f.dentist, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, detail.Order.Status)

	_, err = svc.AddComment(ctx, f.dentist, order.ID, "   ")
	assertKind(t, err, apperr.KindValidation)
}

func TestLaboratoryVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()

	mine := f.crownOrder(t, true)
	unassigned := f.crownOrder(t, false)

	other := &models.Laboratory{ClinicID: f.clinicID, Name: "Other", Email: "other@lab.test", Active: true}
	require.NoError(t, f.store.Laboratories().Create(ctx, other))
	outsider := f.labUser(t, other.ID)
	insider := f.labUser(t, f.lab.ID)

	_, err := svc.Get(ctx, outsider, mine.ID)
	assertKind(t, err, apperr.KindNotFound)
	_, err = svc.UpdateStatus(ctx, outsider, mine.ID, "received", "")
	assertKind(t, err, apperr.KindNotFound)
	_, err = svc.AddComment(ctx, insider, unassigned.ID, "hello")
	assertKind(t, err, apperr.KindNotFound)

	visible, err := svc.List(ctx, insider, OrderFilter{LaboratoryID: other.ID})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, mine.ID, visible[0].ID)

	detail, err := svc.Get(ctx, insider, mine.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Order.Patient)
	assert.Equal(t, f.patient.Name, detail.Order.Patient.Name)
}

func TestListBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()

	statuses := []string{"", "analysis", "adjustment", "ready", "delivered"}
	for _, st := range statuses {
		order := f.crownOrder(t, false)
		if st != "" {
			_, err := svc.UpdateStatus(ctx, f.dentist, order.ID, st, "")
			require.NoError(t, err)
		}
		f.clock.Advance(time.Minute)
	}

	tests := []struct {
		filter string
		want   int
	}{
		{"", 5},
		{"all", 5},
		{"pending", 1},
		{"production", 2},
		{"ready", 2},
		{"delivered", 1},
		{"adjustment", 1},
	}
	for _, tt := range tests {
		orders, err := svc.List(ctx, f.dentist, OrderFilter{Status: tt.filter})
		require.NoError(t, err)
		assert.Len(t, orders, tt.want, "filter %q", tt.filter)
	}

	_, err := svc.List(ctx, f.dentist, OrderFilter{Status: "lost"})
	assertKind(t, err, apperr.KindValidation)

	otherClinic := f.dentist
	otherClinic.ClinicID = "elsewhere"
	orders, err := svc.List(ctx, otherClinic, OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestUpdateOrderSpecification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.orders()
	order := f.crownOrder(t, false)

	deadline := f.clock.Now().AddDate(0, 0, 7)
	labID := f.lab.ID
	updated, err := svc.Update(ctx, f.dentist, order.ID, OrderInput{
		PatientID:    "ignored",
		WorkType:     models.WorkBridge,
		Material:     "zirconia",
		ToothNumbers: "14-16",
		Urgency:      models.UrgencyUrgent,
		Deadline:     models.NewDate(deadline),
		LaboratoryID: &labID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.WorkBridge, updated.WorkType)
	assert.Equal(t, f.patient.ID, updated.PatientID)
	assert.Equal(t, models.OrderPending, updated.Status)
	assert.Equal(t, int64(2), updated.Version)
	require.NotNil(t, updated.Deadline)
	assert.True(t, deadline.Equal(*updated.Deadline))

	_, err = svc.Update(ctx, f.dentist, order.ID, OrderInput{WorkType: models.WorkOther})
	assertKind(t, err, apperr.KindValidation)

	history, err := svc.History(ctx, f.dentist, order.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}
