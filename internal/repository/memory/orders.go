package memory

import (
	"context"
	"sort"
	"time"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

type orderRepo struct{ s *Store }

func stripOrder(o models.ProstheticOrder) models.ProstheticOrder {
	o.Patient, o.Dentist, o.Laboratory = nil, nil, nil
	return o
}

func (d *data) orderWithRelations(o models.ProstheticOrder, withDentist bool) models.ProstheticOrder {
	if p, ok := d.patients.get(o.PatientID); ok {
		o.Patient = &p
	}
	if withDentist {
		if u, ok := d.users.get(o.DentistID); ok {
			o.Dentist = &u
		}
	}
	if o.LaboratoryID != nil {
		if l, ok := d.labs.get(*o.LaboratoryID); ok {
			o.Laboratory = &l
		}
	}
	return o
}

func (r orderRepo) Create(ctx context.Context, order *models.ProstheticOrder) error {
	r.s.stamp(&order.BaseModel)
	r.s.with(func(d *data) { d.orders.put(order.ID, stripOrder(*order)) })
	return nil
}

func (r orderRepo) FindByID(ctx context.Context, clinicID, id string) (*models.ProstheticOrder, error) {
	var (
		order models.ProstheticOrder
		ok    bool
	)
	r.s.with(func(d *data) { order, ok = d.orders.get(id) })
	if !ok || order.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &order, nil
}

func (r orderRepo) FindDetail(ctx context.Context, clinicID, id string) (*models.ProstheticOrder, error) {
	var (
		order models.ProstheticOrder
		ok    bool
	)
	r.s.with(func(d *data) {
		order, ok = d.orders.get(id)
		if ok {
			order = d.orderWithRelations(order, true)
		}
	})
	if !ok || order.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &order, nil
}

func (r orderRepo) List(ctx context.Context, clinicID string, filter repository.OrderFilter) ([]models.ProstheticOrder, error) {
	statuses := make(map[models.OrderStatus]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[s] = true
	}
	var orders []models.ProstheticOrder
	r.s.with(func(d *data) {
		orders = d.orders.filter(func(o models.ProstheticOrder) bool {
			switch {
			case o.ClinicID != clinicID:
				return false
			case len(statuses) > 0 && !statuses[o.Status]:
				return false
			case filter.DentistID != "" && o.DentistID != filter.DentistID:
				return false
			case filter.LaboratoryID != "" && (o.LaboratoryID == nil || *o.LaboratoryID != filter.LaboratoryID):
				return false
			}
			return true
		})
		for i := range orders {
			orders[i] = d.orderWithRelations(orders[i], false)
		}
	})
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (r orderRepo) UpdateVersioned(ctx context.Context, o *models.ProstheticOrder, expectedVersion int64) error {
	var err error
	r.s.with(func(d *data) {
		existing, ok := d.orders.get(o.ID)
		if !ok || existing.ClinicID != o.ClinicID || existing.Version != expectedVersion {
			err = repository.ErrStaleVersion
			return
		}
		o.Version = expectedVersion + 1
		o.UpdatedAt = r.s.now()
		row := stripOrder(*o)
		row.PatientID = existing.PatientID
		row.DentistID = existing.DentistID
		row.CreatedAt = existing.CreatedAt
		d.orders.put(o.ID, row)
	})
	return err
}

func (r orderRepo) AppendHistory(ctx context.Context, entry *models.ProstheticOrderHistoryEntry) error {
	r.s.stamp(&entry.BaseModel)
	r.s.with(func(d *data) { d.history.put(entry.ID, *entry) })
	return nil
}

func (d *data) orderInClinic(clinicID, orderID string) bool {
	o, ok := d.orders.get(orderID)
	return ok && o.ClinicID == clinicID
}

func (r orderRepo) ListHistory(ctx context.Context, clinicID, orderID string) ([]models.ProstheticOrderHistoryEntry, error) {
	var entries []models.ProstheticOrderHistoryEntry
	r.s.with(func(d *data) {
		if !d.orderInClinic(clinicID, orderID) {
			entries = []models.ProstheticOrderHistoryEntry{}
			return
		}
		entries = d.history.filter(func(h models.ProstheticOrderHistoryEntry) bool { return h.RequestID == orderID })
	})
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Sequence < b.Sequence
	})
	return entries, nil
}

func (r orderRepo) AddComment(ctx context.Context, comment *models.ProstheticOrderComment) error {
	r.s.stamp(&comment.BaseModel)
	r.s.with(func(d *data) { d.comments.put(comment.ID, *comment) })
	return nil
}

func (r orderRepo) ListComments(ctx context.Context, clinicID, orderID string) ([]models.ProstheticOrderComment, error) {
	var comments []models.ProstheticOrderComment
	r.s.with(func(d *data) {
		if !d.orderInClinic(clinicID, orderID) {
			comments = []models.ProstheticOrderComment{}
			return
		}
		comments = d.comments.filter(func(c models.ProstheticOrderComment) bool { return c.RequestID == orderID })
	})
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	r.s.stamp(&notification.BaseModel)
	r.s.with(func(d *data) { d.notifications.put(notification.ID, *notification) })
	return nil
}

func (r notificationRepo) ListForRecipient(ctx context.Context, clinicID string, recipientType models.ActorType, recipientID string, unreadOnly bool) ([]models.Notification, error) {
	var notifications []models.Notification
	r.s.with(func(d *data) {
		notifications = d.notifications.filter(func(n models.Notification) bool {
			return n.ClinicID == clinicID && n.RecipientType == recipientType &&
				n.RecipientID == recipientID && (!unreadOnly || n.ReadAt == nil)
		})
	})
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, clinicID, recipientID, id string, at time.Time) error {
	var err error
	r.s.with(func(d *data) {
		n, ok := d.notifications.get(id)
		if !ok || n.ClinicID != clinicID || n.RecipientID != recipientID {
			err = repository.ErrNotFound
			return
		}
		n.ReadAt = &at
		d.notifications.put(id, n)
	})
	return err
}

func (r notificationRepo) MarkAllRead(ctx context.Context, clinicID, recipientID string, at time.Time) (int64, error) {
	var count int64
	r.s.with(func(d *data) {
		unread := d.notifications.filter(func(n models.Notification) bool {
			return n.ClinicID == clinicID && n.RecipientID == recipientID && n.ReadAt == nil
		})
		for _, n := range unread {
			readAt := at
			n.ReadAt = &readAt
			d.notifications.put(n.ID, n)
			count++
		}
	})
	return count, nil
}

type outboxRepo struct{ s *Store }

func (r outboxRepo) Create(ctx context.Context, event *models.OutboxEvent) error {
	r.s.stamp(&event.BaseModel)
	r.s.with(func(d *data) { d.outbox.put(event.ID, *event) })
	return nil
}

func (r outboxRepo) ListPending(ctx context.Context, maxRetries, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	r.s.with(func(d *data) {
		events = d.outbox.filter(func(e models.OutboxEvent) bool {
			return e.ProcessedAt == nil && e.RetryCount < maxRetries
		})
	})
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.Before(events[j].CreatedAt) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r outboxRepo) MarkProcessed(ctx context.Context, id string, publishedAt, processedAt time.Time) error {
	var err error
	r.s.with(func(d *data) {
		e, ok := d.outbox.get(id)
		if !ok {
			err = repository.ErrNotFound
			return
		}
		e.PublishedAt = &publishedAt
		e.ProcessedAt = &processedAt
		e.ErrorMessage = ""
		d.outbox.put(id, e)
	})
	return err
}

func (r outboxRepo) MarkFailed(ctx context.Context, id string, message string) error {
	var err error
	r.s.with(func(d *data) {
		e, ok := d.outbox.get(id)
		if !ok {
			err = repository.ErrNotFound
			return
		}
		e.RetryCount++
		e.ErrorMessage = message
		d.outbox.put(id, e)
	})
	return err
}

func (r outboxRepo) CountPending(ctx context.Context) (int64, error) {
	var count int64
	r.s.with(func(d *data) {
		count = int64(len(d.outbox.filter(func(e models.OutboxEvent) bool { return e.ProcessedAt == nil })))
	})
	return count, nil
}

func (r outboxRepo) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	var count int64
	r.s.with(func(d *data) {
		old := d.outbox.filter(func(e models.OutboxEvent) bool {
			return e.ProcessedAt != nil && e.ProcessedAt.Before(before)
		})
		for _, e := range old {
			d.outbox.del(e.ID)
			count++
		}
	})
	return count, nil
}
