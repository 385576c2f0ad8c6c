// Package memory is an in-process implementation of repository.Store.
// It backs DB_DRIVER=memory and the package tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

// table keeps rows by id and remembers insertion order.
type table[T any] struct {
	rows  map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) put(id string, v T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = v
}

func (t *table[T]) get(id string) (T, bool) {
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) del(id string) {
	delete(t.rows, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *table[T]) filter(keep func(T) bool) []T {
	out := make([]T, 0)
	for _, id := range t.order {
		if v := t.rows[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{rows: make(map[string]T, len(t.rows)), order: append([]string(nil), t.order...)}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	return c
}

type data struct {
	clinics       *table[models.Clinic]
	users         *table[models.User]
	tokens        *table[models.RefreshToken]
	patients      *table[models.Patient]
	labs          *table[models.Laboratory]
	appointments  *table[models.Appointment]
	consultations *table[models.Consultation]
	records       *table[models.MedicalRecord]
	orders        *table[models.ProstheticOrder]
	history       *table[models.ProstheticOrderHistoryEntry]
	comments      *table[models.ProstheticOrderComment]
	notifications *table[models.Notification]
	outbox        *table[models.OutboxEvent]
}

func newData() *data {
	return &data{
		clinics:       newTable[models.Clinic](),
		users:         newTable[models.User](),
		tokens:        newTable[models.RefreshToken](),
		patients:      newTable[models.Patient](),
		labs:          newTable[models.Laboratory](),
		appointments:  newTable[models.Appointment](),
		consultations: newTable[models.Consultation](),
		records:       newTable[models.MedicalRecord](),
		orders:        newTable[models.ProstheticOrder](),
		history:       newTable[models.ProstheticOrderHistoryEntry](),
		comments:      newTable[models.ProstheticOrderComment](),
		notifications: newTable[models.Notification](),
		outbox:        newTable[models.OutboxEvent](),
	}
}

func (d *data) clone() *data {
	return &data{
		clinics:       d.clinics.clone(),
		users:         d.users.clone(),
		tokens:        d.tokens.clone(),
		patients:      d.patients.clone(),
		labs:          d.labs.clone(),
		appointments:  d.appointments.clone(),
		consultations: d.consultations.clone(),
		records:       d.records.clone(),
		orders:        d.orders.clone(),
		history:       d.history.clone(),
		comments:      d.comments.clone(),
		notifications: d.notifications.clone(),
		outbox:        d.outbox.clone(),
	}
}

// Store is a mutex-guarded, snapshot-on-transaction in-memory store.
// Calls made outside a transaction wait for any open transaction to finish,
// so a rollback never discards them and they never read uncommitted rows.
type Store struct {
	mu   *sync.Mutex
	txMu *sync.Mutex
	d    **data
	now  func() time.Time
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	d := newData()
	return &Store{mu: &sync.Mutex{}, txMu: &sync.Mutex{}, d: &d, now: time.Now}
}

// Atomic serializes transactions and restores the pre-transaction snapshot on error.
func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := (*s.d).clone()
	s.mu.Unlock()

	tx := *s
	tx.inTx = true
	if err := fn(&tx); err != nil {
		s.mu.Lock()
		*s.d = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) with(fn func(d *data)) {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(*s.d)
}

func (s *Store) stamp(base *models.BaseModel) {
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	now := s.now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

func (s *Store) Clinics() repository.ClinicRepository             { return clinicRepo{s} }
func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return tokenRepo{s} }
func (s *Store) Patients() repository.PatientRepository           { return patientRepo{s} }
func (s *Store) Laboratories() repository.LaboratoryRepository    { return labRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository   { return appointmentRepo{s} }
func (s *Store) Consultations() repository.ConsultationRepository { return consultationRepo{s} }
func (s *Store) MedicalRecords() repository.MedicalRecordRepository {
	return recordRepo{s}
}
func (s *Store) Orders() repository.ProstheticOrderRepository     { return orderRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository              { return outboxRepo{s} }
