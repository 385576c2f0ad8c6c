package memory

import (
	"context"
	"sort"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(ctx context.Context, appointment *models.Appointment) error {
	r.s.stamp(&appointment.BaseModel)
	row := *appointment
	row.Patient, row.Dentist = nil, nil
	r.s.with(func(d *data) { d.appointments.put(row.ID, row) })
	return nil
}

// appointmentWithRelations mirrors the gorm Preload of patient and dentist.
func (d *data) appointmentWithRelations(a models.Appointment) models.Appointment {
	if p, ok := d.patients.get(a.PatientID); ok {
		a.Patient = &p
	}
	if u, ok := d.users.get(a.DentistID); ok {
		a.Dentist = &u
	}
	return a
}

func (r appointmentRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Appointment, error) {
	var (
		appointment models.Appointment
		ok          bool
	)
	r.s.with(func(d *data) {
		appointment, ok = d.appointments.get(id)
		if ok {
			appointment = d.appointmentWithRelations(appointment)
		}
	})
	if !ok || appointment.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &appointment, nil
}

func (r appointmentRepo) List(ctx context.Context, clinicID string, filter repository.AppointmentFilter) ([]models.Appointment, error) {
	var appointments []models.Appointment
	r.s.with(func(d *data) {
		appointments = d.appointments.filter(func(a models.Appointment) bool {
			switch {
			case a.ClinicID != clinicID:
				return false
			case filter.DentistID != "" && a.DentistID != filter.DentistID:
				return false
			case filter.PatientID != "" && a.PatientID != filter.PatientID:
				return false
			case filter.Status != "" && a.Status != filter.Status:
				return false
			case filter.From != nil && a.StartTime.Before(*filter.From):
				return false
			case filter.To != nil && !a.StartTime.Before(*filter.To):
				return false
			}
			return true
		})
		for i := range appointments {
			appointments[i] = d.appointmentWithRelations(appointments[i])
		}
	})
	sort.SliceStable(appointments, func(i, j int) bool {
		return appointments[i].StartTime.Before(appointments[j].StartTime)
	})
	return appointments, nil
}

func (r appointmentRepo) Update(ctx context.Context, appointment *models.Appointment) error {
	var err error
	r.s.with(func(d *data) {
		existing, ok := d.appointments.get(appointment.ID)
		if !ok || existing.ClinicID != appointment.ClinicID {
			err = repository.ErrNotFound
			return
		}
		r.s.stamp(&appointment.BaseModel)
		row := *appointment
		row.Patient, row.Dentist = nil, nil
		d.appointments.put(row.ID, row)
	})
	return err
}

func (r appointmentRepo) UpdateStatus(ctx context.Context, clinicID, id string, status models.AppointmentStatus) error {
	var err error
	r.s.with(func(d *data) {
		existing, ok := d.appointments.get(id)
		if !ok || existing.ClinicID != clinicID {
			err = repository.ErrNotFound
			return
		}
		existing.Status = status
		existing.UpdatedAt = r.s.now()
		d.appointments.put(id, existing)
	})
	return err
}

type consultationRepo struct{ s *Store }

func (r consultationRepo) Create(ctx context.Context, consultation *models.Consultation) error {
	var err error
	r.s.with(func(d *data) {
		dup := d.consultations.filter(func(c models.Consultation) bool {
			return c.AppointmentID == consultation.AppointmentID
		})
		if len(dup) > 0 {
			err = repository.ErrDuplicate
			return
		}
		r.s.stamp(&consultation.BaseModel)
		d.consultations.put(consultation.ID, *consultation)
	})
	return err
}

func (r consultationRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Consultation, error) {
	var (
		consultation models.Consultation
		ok           bool
	)
	r.s.with(func(d *data) { consultation, ok = d.consultations.get(id) })
	if !ok || consultation.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &consultation, nil
}

func (r consultationRepo) FindByAppointment(ctx context.Context, clinicID, appointmentID string) (*models.Consultation, error) {
	var found []models.Consultation
	r.s.with(func(d *data) {
		found = d.consultations.filter(func(c models.Consultation) bool {
			return c.AppointmentID == appointmentID && c.ClinicID == clinicID
		})
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (r consultationRepo) List(ctx context.Context, clinicID string, status models.ConsultationStatus) ([]models.Consultation, error) {
	var consultations []models.Consultation
	r.s.with(func(d *data) {
		consultations = d.consultations.filter(func(c models.Consultation) bool {
			return c.ClinicID == clinicID && (status == "" || c.Status == status)
		})
	})
	sort.SliceStable(consultations, func(i, j int) bool {
		return consultations[i].StartedAt.After(consultations[j].StartedAt)
	})
	return consultations, nil
}

func (r consultationRepo) UpdateVersioned(ctx context.Context, c *models.Consultation, expectedVersion int64) error {
	var err error
	r.s.with(func(d *data) {
		existing, ok := d.consultations.get(c.ID)
		if !ok || existing.ClinicID != c.ClinicID || existing.Version != expectedVersion {
			err = repository.ErrStaleVersion
			return
		}
		c.Version = expectedVersion + 1
		c.UpdatedAt = r.s.now()
		// Identity and start time are immutable.
		row := *c
		row.AppointmentID = existing.AppointmentID
		row.StartedAt = existing.StartedAt
		row.CreatedAt = existing.CreatedAt
		d.consultations.put(c.ID, row)
	})
	return err
}

type recordRepo struct{ s *Store }

func (r recordRepo) Create(ctx context.Context, record *models.MedicalRecord) error {
	var err error
	r.s.with(func(d *data) {
		dup := d.records.filter(func(m models.MedicalRecord) bool { return m.ConsultationID == record.ConsultationID })
		if len(dup) > 0 {
			err = repository.ErrDuplicate
			return
		}
		r.s.stamp(&record.BaseModel)
		d.records.put(record.ID, *record)
	})
	return err
}

func (r recordRepo) FindByID(ctx context.Context, clinicID, id string) (*models.MedicalRecord, error) {
	var (
		record models.MedicalRecord
		ok     bool
	)
	r.s.with(func(d *data) { record, ok = d.records.get(id) })
	if !ok || record.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &record, nil
}

func (r recordRepo) FindByConsultation(ctx context.Context, clinicID, consultationID string) (*models.MedicalRecord, error) {
	var found []models.MedicalRecord
	r.s.with(func(d *data) {
		found = d.records.filter(func(m models.MedicalRecord) bool {
			return m.ConsultationID == consultationID && m.ClinicID == clinicID
		})
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (r recordRepo) ListByPatient(ctx context.Context, clinicID, patientID string) ([]models.MedicalRecord, error) {
	var records []models.MedicalRecord
	r.s.with(func(d *data) {
		records = d.records.filter(func(m models.MedicalRecord) bool {
			return m.PatientID == patientID && m.ClinicID == clinicID
		})
	})
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}
