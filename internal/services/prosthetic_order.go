package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dental-clinic-server/internal/apperr"
	"dental-clinic-server/internal/metrics"
	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

// Outbox event types for prosthetic orders.
const (
	AggregateProstheticOrder = "prosthetic_order"

	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCommentAdded  = "order.comment_added"
)

// List buckets group pipeline states for the order board. A bucket name takes
// precedence over an exact status of the same name.
const (
	BucketAll        = "all"
	BucketPending    = "pending"
	BucketProduction = "production"
	BucketReady      = "ready"
)

var statusBuckets = map[string][]models.OrderStatus{
	BucketPending: {models.OrderPending},
	BucketProduction: {
		models.OrderReceived,
		models.OrderAnalysis,
		models.OrderProduction,
		models.OrderAssembly,
		models.OrderAdjustment,
	},
	BucketReady: {models.OrderReady, models.OrderDelivered},
}

// OrderInput holds the specification fields of an order, used by Create and Update.
// Update ignores PatientID and DentistID; both are fixed at creation.
type OrderInput struct {
	PatientID      string          `json:"patientId"`
	DentistID      string          `json:"dentistId"`
	LaboratoryID   *string         `json:"laboratoryId"`
	WorkType       models.WorkType `json:"workType" validate:"required"`
	WorkTypeCustom string          `json:"workTypeCustom" validate:"max=255"`
	Material       string          `json:"material" validate:"max=100"`
	Shade          string          `json:"shade" validate:"max=30"`
	ToothNumbers   string          `json:"toothNumbers" validate:"max=100"`
	Observations   string          `json:"observations"`
	Urgency        models.Urgency  `json:"urgency"`
	Deadline       *models.Date    `json:"deadline"`
}

// OrderFilter is the list query of the order board.
type OrderFilter struct {
	Status       string
	DentistID    string
	LaboratoryID string
}

// OrderDetail is the order with its joined parties, history, comments and
// pipeline progress. Progress is nil while the order is in adjustment.
type OrderDetail struct {
	Order    *models.ProstheticOrder              `json:"order"`
	History  []models.ProstheticOrderHistoryEntry `json:"history"`
	Comments []models.ProstheticOrderComment      `json:"comments"`
	Progress *int                                 `json:"progress"`
}

type orderEvent struct {
	OrderID        string              `json:"orderId"`
	ClinicID       string              `json:"clinicId"`
	LaboratoryID   *string             `json:"laboratoryId,omitempty"`
	Status         models.OrderStatus  `json:"status"`
	PreviousStatus *models.OrderStatus `json:"previousStatus,omitempty"`
	ActorType      models.ActorType    `json:"actorType"`
	ActorID        string              `json:"actorId,omitempty"`
	Notes          string              `json:"notes,omitempty"`
	OccurredAt     time.Time           `json:"occurredAt"`
}

// NextStatus resolves a requested transition. Every known status is reachable
// from every other, adjustment included; unknown values are rejected.
func NextStatus(current models.OrderStatus, requested string) (models.OrderStatus, error) {
	next := models.OrderStatus(strings.ToLower(strings.TrimSpace(requested)))
	if next == "" {
		return current, apperr.Validation("status is required")
	}
	if !next.Valid() {
		return current, apperr.Validation("unknown order status %q", requested)
	}
	return next, nil
}

// ProstheticOrderService runs the lab order workflow.
type ProstheticOrderService struct {
	store   repository.Store
	now     Clock
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewProstheticOrderService(store repository.Store, log zerolog.Logger, m *metrics.Metrics) *ProstheticOrderService {
	return &ProstheticOrderService{
		store:   store,
		now:     time.Now,
		log:     log.With().Str("component", "prosthetic_order").Logger(),
		metrics: m,
	}
}

// WithClock replaces the time source.
func (s *ProstheticOrderService) WithClock(clock Clock) *ProstheticOrderService {
	s.now = clock
	return s
}

func (s *ProstheticOrderService) validateSpec(in *OrderInput) error {
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.WorkType = models.WorkType(strings.ToLower(strings.TrimSpace(string(in.WorkType))))
	in.WorkTypeCustom = strings.TrimSpace(in.WorkTypeCustom)
	if in.Urgency == "" {
		in.Urgency = models.UrgencyNormal
	}
	if in.LaboratoryID != nil && strings.TrimSpace(*in.LaboratoryID) == "" {
		in.LaboratoryID = nil
	}

	if err := validateInput(in); err != nil {
		return err
	}
	if !in.WorkType.Valid() {
		return apperr.Validation("unknown workType %q", in.WorkType)
	}
	if in.WorkType == models.WorkOther && in.WorkTypeCustom == "" {
		return apperr.Validation("workTypeCustom is required when workType is other")
	}
	if !in.Urgency.Valid() {
		return apperr.Validation("urgency must be one of normal, urgent, express")
	}
	return nil
}

// resolveParties checks that the patient, dentist and laboratory belong to the clinic.
func (s *ProstheticOrderService) resolveParties(ctx context.Context, tx repository.Store, actor Actor, in *OrderInput) (string, error) {
	if _, err := tx.Patients().FindByID(ctx, actor.ClinicID, in.PatientID); err != nil {
		return "", lookupErr(err, "patient", in.PatientID)
	}

	dentistID := actor.UserID
	if in.DentistID != "" && in.DentistID != actor.UserID {
		dentist, err := tx.Users().FindByID(ctx, actor.ClinicID, in.DentistID)
		if err != nil {
			return "", lookupErr(err, "dentist", in.DentistID)
		}
		if dentist.Role != models.RoleDentist && dentist.Role != models.RoleAdmin {
			return "", apperr.Validation("user %s is not a dentist", in.DentistID)
		}
		dentistID = dentist.ID
	}

	if in.LaboratoryID != nil {
		if err := s.checkLaboratory(ctx, tx, actor, *in.LaboratoryID); err != nil {
			return "", err
		}
	}
	return dentistID, nil
}

func (s *ProstheticOrderService) checkLaboratory(ctx context.Context, tx repository.Store, actor Actor, id string) error {
	lab, err := tx.Laboratories().FindByID(ctx, actor.ClinicID, id)
	if err != nil {
		return lookupErr(err, "laboratory", id)
	}
	if !lab.Active {
		return apperr.Validation("laboratory %s is inactive", lab.ID)
	}
	return nil
}

// Create opens an order in pending. Only clinic staff that treat patients can create orders.
func (s *ProstheticOrderService) Create(ctx context.Context, actor Actor, in OrderInput) (*models.ProstheticOrder, error) {
	if !actor.canTreat() {
		return nil, apperr.Forbidden("only dentists and admins can create prosthetic orders")
	}
	if strings.TrimSpace(in.PatientID) == "" {
		return nil, apperr.Validation("patientId is required")
	}
	if err := s.validateSpec(&in); err != nil {
		return nil, err
	}

	var order *models.ProstheticOrder
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		dentistID, err := s.resolveParties(ctx, tx, actor, &in)
		if err != nil {
			return err
		}
		order = &models.ProstheticOrder{
			ClinicID: actor.ClinicID,
			Status:   models.OrderPending,
			Version:  1,
		}
		applySpec(order, in, dentistID)
		if err := tx.Orders().Create(ctx, order); err != nil {
			return writeErr(err, "prosthetic order")
		}

		if order.LaboratoryID != nil {
			err := s.notify(ctx, tx, order, models.ActorProtetico, *order.LaboratoryID, models.NotifyOrderCreated,
				"New prosthetic order",
				fmt.Sprintf("A new %s order was sent to your laboratory.", workLabel(order)))
			if err != nil {
				return err
			}
		}
		return s.emit(ctx, tx, EventOrderCreated, order, orderEvent{
			Status:    order.Status,
			ActorType: actor.Type(),
			ActorID:   actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("order_id", order.ID).Str("clinic_id", order.ClinicID).Msg("prosthetic order created")
	return order, nil
}

func applySpec(order *models.ProstheticOrder, in OrderInput, dentistID string) {
	order.PatientID = in.PatientID
	order.DentistID = dentistID
	order.LaboratoryID = in.LaboratoryID
	order.WorkType = in.WorkType
	order.WorkTypeCustom = ""
	if in.WorkType == models.WorkOther {
		order.WorkTypeCustom = in.WorkTypeCustom
	}
	order.Material = in.Material
	order.Shade = in.Shade
	order.ToothNumbers = in.ToothNumbers
	order.Observations = in.Observations
	order.Urgency = in.Urgency
	order.Deadline = in.Deadline.TimePtr()
}

func workLabel(order *models.ProstheticOrder) string {
	if order.WorkType == models.WorkOther && order.WorkTypeCustom != "" {
		return order.WorkTypeCustom
	}
	return strings.ReplaceAll(string(order.WorkType), "_", " ")
}

// Update rewrites the specification fields. Status is not touched.
func (s *ProstheticOrderService) Update(ctx context.Context, actor Actor, id string, in OrderInput) (*models.ProstheticOrder, error) {
	if !actor.canTreat() {
		return nil, apperr.Forbidden("only dentists and admins can edit prosthetic orders")
	}
	if err := s.validateSpec(&in); err != nil {
		return nil, err
	}

	var order *models.ProstheticOrder
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		current, err := s.loadOrder(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		in.PatientID = current.PatientID
		if in.LaboratoryID != nil && (current.LaboratoryID == nil || *current.LaboratoryID != *in.LaboratoryID) {
			if err := s.checkLaboratory(ctx, tx, actor, *in.LaboratoryID); err != nil {
				return err
			}
		}
		applySpec(current, in, current.DentistID)
		if err := tx.Orders().UpdateVersioned(ctx, current, current.Version); err != nil {
			return writeErr(err, "prosthetic order")
		}
		order = current
		return s.emit(ctx, tx, EventOrderUpdated, order, orderEvent{
			Status:    order.Status,
			ActorType: actor.Type(),
			ActorID:   actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateStatus moves the order to the requested status and appends exactly one history entry.
func (s *ProstheticOrderService) UpdateStatus(ctx context.Context, actor Actor, id, status, notes string) (*models.ProstheticOrder, error) {
	var (
		order    *models.ProstheticOrder
		previous models.OrderStatus
	)
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		current, err := s.loadOrder(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		next, err := NextStatus(current.Status, status)
		if err != nil {
			return err
		}

		previous = current.Status
		current.Status = next
		if err := tx.Orders().UpdateVersioned(ctx, current, current.Version); err != nil {
			return writeErr(err, "prosthetic order")
		}

		prev := previous
		entry := &models.ProstheticOrderHistoryEntry{
			RequestID:      current.ID,
			PreviousStatus: &prev,
			NewStatus:      next,
			ChangedByType:  actor.Type(),
			ChangedByID:    actor.UserID,
			Notes:          strings.TrimSpace(notes),
			Sequence:       current.Version,
		}
		if err := tx.Orders().AppendHistory(ctx, entry); err != nil {
			return writeErr(err, "order history")
		}
		order = current

		title := "Prosthetic order updated"
		body := fmt.Sprintf("Order for %s moved from %s to %s.", workLabel(current), previous, next)
		if err := s.notifyOtherParty(ctx, tx, actor, current, models.NotifyOrderStatusChanged, title, body); err != nil {
			return err
		}
		return s.emit(ctx, tx, EventOrderStatusChanged, current, orderEvent{
			Status:         next,
			PreviousStatus: &prev,
			ActorType:      actor.Type(),
			ActorID:        actor.UserID,
			Notes:          entry.Notes,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderTransition(string(previous), string(order.Status))
	s.log.Info().
		Str("order_id", order.ID).
		Str("from", string(previous)).
		Str("to", string(order.Status)).
		Str("changed_by", string(actor.Type())).
		Msg("prosthetic order status changed")
	return order, nil
}

// MarkAdjustment sends the order to the adjustment side state.
func (s *ProstheticOrderService) MarkAdjustment(ctx context.Context, actor Actor, id, notes string) (*models.ProstheticOrder, error) {
	return s.UpdateStatus(ctx, actor, id, string(models.OrderAdjustment), notes)
}

// AddComment appends a message to the order thread without touching its status.
func (s *ProstheticOrderService) AddComment(ctx context.Context, actor Actor, id, message string) (*models.ProstheticOrderComment, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperr.Validation("message is required")
	}

	var comment *models.ProstheticOrderComment
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		order, err := s.loadOrder(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		comment = &models.ProstheticOrderComment{
			RequestID:  order.ID,
			AuthorType: actor.Type(),
			AuthorID:   actor.UserID,
			Message:    message,
		}
		if err := tx.Orders().AddComment(ctx, comment); err != nil {
			return writeErr(err, "order comment")
		}
		if err := s.notifyOtherParty(ctx, tx, actor, order, models.NotifyOrderComment,
			"New comment on prosthetic order", excerpt(message, 140)); err != nil {
			return err
		}
		return s.emit(ctx, tx, EventOrderCommentAdded, order, orderEvent{
			Status:    order.Status,
			ActorType: actor.Type(),
			ActorID:   actor.UserID,
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Get returns the order detail projection.
func (s *ProstheticOrderService) Get(ctx context.Context, actor Actor, id string) (*OrderDetail, error) {
	order, err := s.store.Orders().FindDetail(ctx, actor.ClinicID, id)
	if err != nil {
		return nil, lookupErr(err, "prosthetic order", id)
	}
	if !visibleTo(actor, order) {
		return nil, apperr.NotFound("prosthetic order %s not found", id)
	}
	history, err := s.store.Orders().ListHistory(ctx, actor.ClinicID, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load order history")
	}
	comments, err := s.store.Orders().ListComments(ctx, actor.ClinicID, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load order comments")
	}

	detail := &OrderDetail{Order: order, History: history, Comments: comments}
	if p := order.Status.Progress(); p >= 0 {
		detail.Progress = &p
	}
	return detail, nil
}

// List returns the clinic's orders, newest first.
func (s *ProstheticOrderService) List(ctx context.Context, actor Actor, f OrderFilter) ([]models.ProstheticOrder, error) {
	filter := repository.OrderFilter{DentistID: f.DentistID, LaboratoryID: f.LaboratoryID}

	status := strings.ToLower(strings.TrimSpace(f.Status))
	if bucket, ok := statusBuckets[status]; ok {
		filter.Statuses = bucket
	} else if status != "" && status != BucketAll {
		st := models.OrderStatus(status)
		if !st.Valid() {
			return nil, apperr.Validation("unknown status filter %q", f.Status)
		}
		filter.Statuses = []models.OrderStatus{st}
	}

	if actor.Role == models.RoleProtetico {
		if actor.LaboratoryID == nil {
			return nil, apperr.Forbidden("laboratory account is not linked to a laboratory")
		}
		filter.LaboratoryID = *actor.LaboratoryID
	}

	orders, err := s.store.Orders().List(ctx, actor.ClinicID, filter)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list prosthetic orders")
	}
	return orders, nil
}

func (s *ProstheticOrderService) History(ctx context.Context, actor Actor, id string) ([]models.ProstheticOrderHistoryEntry, error) {
	if _, err := s.loadOrder(ctx, s.store, actor, id); err != nil {
		return nil, err
	}
	history, err := s.store.Orders().ListHistory(ctx, actor.ClinicID, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load order history")
	}
	return history, nil
}

func (s *ProstheticOrderService) Comments(ctx context.Context, actor Actor, id string) ([]models.ProstheticOrderComment, error) {
	if _, err := s.loadOrder(ctx, s.store, actor, id); err != nil {
		return nil, err
	}
	comments, err := s.store.Orders().ListComments(ctx, actor.ClinicID, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load order comments")
	}
	return comments, nil
}

// loadOrder reads an order the actor may see. Lab accounts only see their own lab's orders.
func (s *ProstheticOrderService) loadOrder(ctx context.Context, store repository.Store, actor Actor, id string) (*models.ProstheticOrder, error) {
	order, err := store.Orders().FindByID(ctx, actor.ClinicID, id)
	if err != nil {
		return nil, lookupErr(err, "prosthetic order", id)
	}
	if !visibleTo(actor, order) {
		return nil, apperr.NotFound("prosthetic order %s not found", id)
	}
	return order, nil
}

func visibleTo(actor Actor, order *models.ProstheticOrder) bool {
	if actor.Role != models.RoleProtetico {
		return true
	}
	return actor.LaboratoryID != nil && order.LaboratoryID != nil && *order.LaboratoryID == *actor.LaboratoryID
}

// notifyOtherParty notifies the lab when the clinic acts and the dentist when the lab acts.
func (s *ProstheticOrderService) notifyOtherParty(ctx context.Context, tx repository.Store, actor Actor, order *models.ProstheticOrder, kind models.NotificationKind, title, body string) error {
	if actor.Type() == models.ActorProtetico {
		if order.DentistID == "" {
			return nil
		}
		return s.notify(ctx, tx, order, models.ActorDentist, order.DentistID, kind, title, body)
	}
	if order.LaboratoryID == nil {
		return nil
	}
	return s.notify(ctx, tx, order, models.ActorProtetico, *order.LaboratoryID, kind, title, body)
}

func (s *ProstheticOrderService) notify(ctx context.Context, tx repository.Store, order *models.ProstheticOrder, recipientType models.ActorType, recipientID string, kind models.NotificationKind, title, body string) error {
	n := &models.Notification{
		ClinicID:      order.ClinicID,
		RecipientType: recipientType,
		RecipientID:   recipientID,
		Kind:          kind,
		Title:         title,
		Body:          body,
		ReferenceID:   order.ID,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return apperr.Internal(err, "failed to create notification")
	}
	return nil
}

func (s *ProstheticOrderService) emit(ctx context.Context, tx repository.Store, eventType string, order *models.ProstheticOrder, ev orderEvent) error {
	ev.OrderID = order.ID
	ev.ClinicID = order.ClinicID
	ev.LaboratoryID = order.LaboratoryID
	ev.OccurredAt = s.now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		return apperr.Internal(err, "failed to encode %s event", eventType)
	}
	event := &models.OutboxEvent{
		AggregateType: AggregateProstheticOrder,
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
	}
	if err := tx.Outbox().Create(ctx, event); err != nil {
		return apperr.Internal(err, "failed to write %s event", eventType)
	}
	return nil
}
