package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"dental-clinic-server/internal/models"
	"dental-clinic-server/internal/repository"
)

type clinicRepo struct{ s *Store }

func (r clinicRepo) Create(ctx context.Context, clinic *models.Clinic) error {
	r.s.stamp(&clinic.BaseModel)
	r.s.with(func(d *data) { d.clinics.put(clinic.ID, *clinic) })
	return nil
}

func (r clinicRepo) FindByID(ctx context.Context, id string) (*models.Clinic, error) {
	var (
		clinic models.Clinic
		ok     bool
	)
	r.s.with(func(d *data) { clinic, ok = d.clinics.get(id) })
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &clinic, nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *models.User) error {
	var err error
	r.s.with(func(d *data) {
		if len(d.users.filter(func(u models.User) bool { return strings.EqualFold(u.Email, user.Email) })) > 0 {
			err = repository.ErrDuplicate
			return
		}
		r.s.stamp(&user.BaseModel)
		d.users.put(user.ID, *user)
	})
	return err
}

func (r userRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var found []models.User
	r.s.with(func(d *data) {
		found = d.users.filter(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (r userRepo) FindByID(ctx context.Context, clinicID, id string) (*models.User, error) {
	var (
		user models.User
		ok   bool
	)
	r.s.with(func(d *data) { user, ok = d.users.get(id) })
	if !ok || user.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (r userRepo) List(ctx context.Context, clinicID string, role models.Role) ([]models.User, error) {
	var users []models.User
	r.s.with(func(d *data) {
		users = d.users.filter(func(u models.User) bool {
			return u.ClinicID == clinicID && (role == "" || u.Role == role)
		})
	})
	sort.SliceStable(users, func(i, j int) bool { return users[i].FirstName < users[j].FirstName })
	return users, nil
}

func (r userRepo) Update(ctx context.Context, user *models.User) error {
	var err error
	r.s.with(func(d *data) {
		if _, ok := d.users.get(user.ID); !ok {
			err = repository.ErrNotFound
			return
		}
		dup := d.users.filter(func(u models.User) bool {
			return u.ID != user.ID && strings.EqualFold(u.Email, user.Email)
		})
		if len(dup) > 0 {
			err = repository.ErrDuplicate
			return
		}
		r.s.stamp(&user.BaseModel)
		d.users.put(user.ID, *user)
	})
	return err
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(ctx context.Context, token *models.RefreshToken) error {
	r.s.stamp(&token.BaseModel)
	r.s.with(func(d *data) { d.tokens.put(token.ID, *token) })
	return nil
}

func (r tokenRepo) FindActive(ctx context.Context, token, userID string, now time.Time) (*models.RefreshToken, error) {
	var found []models.RefreshToken
	r.s.with(func(d *data) {
		found = d.tokens.filter(func(t models.RefreshToken) bool {
			return t.Token == token && t.UserID == userID && t.Usable(now)
		})
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (r tokenRepo) FindUnrevoked(ctx context.Context, token string) (*models.RefreshToken, error) {
	var found []models.RefreshToken
	r.s.with(func(d *data) {
		found = d.tokens.filter(func(t models.RefreshToken) bool { return t.Token == token && !t.IsRevoked })
	})
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	return &found[0], nil
}

func (r tokenRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	var err error
	r.s.with(func(d *data) {
		t, ok := d.tokens.get(id)
		if !ok {
			err = repository.ErrNotFound
			return
		}
		t.IsRevoked = true
		t.RevokedAt = &at
		d.tokens.put(id, t)
	})
	return err
}

func (r tokenRepo) RevokeForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	var count int64
	r.s.with(func(d *data) {
		active := d.tokens.filter(func(t models.RefreshToken) bool { return t.UserID == userID && !t.IsRevoked })
		for _, t := range active {
			revokedAt := at
			t.IsRevoked = true
			t.RevokedAt = &revokedAt
			d.tokens.put(t.ID, t)
			count++
		}
	})
	return count, nil
}

type patientRepo struct{ s *Store }

func (r patientRepo) Create(ctx context.Context, patient *models.Patient) error {
	r.s.stamp(&patient.BaseModel)
	r.s.with(func(d *data) { d.patients.put(patient.ID, *patient) })
	return nil
}

func (r patientRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Patient, error) {
	var (
		patient models.Patient
		ok      bool
	)
	r.s.with(func(d *data) { patient, ok = d.patients.get(id) })
	if !ok || patient.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &patient, nil
}

func (r patientRepo) List(ctx context.Context, clinicID string, filter repository.PatientFilter) ([]models.Patient, error) {
	search := strings.ToLower(filter.Search)
	var patients []models.Patient
	r.s.with(func(d *data) {
		patients = d.patients.filter(func(p models.Patient) bool {
			if p.ClinicID != clinicID {
				return false
			}
			if !filter.IncludeInactive && !p.Active {
				return false
			}
			return search == "" || strings.Contains(strings.ToLower(p.Name), search)
		})
	})
	sort.SliceStable(patients, func(i, j int) bool { return patients[i].Name < patients[j].Name })
	return patients, nil
}

func (r patientRepo) Update(ctx context.Context, patient *models.Patient) error {
	var err error
	r.s.with(func(d *data) {
		existing, ok := d.patients.get(patient.ID)
		if !ok || existing.ClinicID != patient.ClinicID {
			err = repository.ErrNotFound
			return
		}
		r.s.stamp(&patient.BaseModel)
		d.patients.put(patient.ID, *patient)
	})
	return err
}

type labRepo struct{ s *Store }

func (r labRepo) Create(ctx context.Context, lab *models.Laboratory) error {
	var err error
	r.s.with(func(d *data) {
		if len(d.labs.filter(func(l models.Laboratory) bool { return strings.EqualFold(l.Email, lab.Email) })) > 0 {
			err = repository.ErrDuplicate
			return
		}
		r.s.stamp(&lab.BaseModel)
		d.labs.put(lab.ID, *lab)
	})
	return err
}

func (r labRepo) FindByID(ctx context.Context, clinicID, id string) (*models.Laboratory, error) {
	var (
		lab models.Laboratory
		ok  bool
	)
	r.s.with(func(d *data) { lab, ok = d.labs.get(id) })
	if !ok || lab.ClinicID != clinicID {
		return nil, repository.ErrNotFound
	}
	return &lab, nil
}

func (r labRepo) List(ctx context.Context, clinicID string, includeInactive bool) ([]models.Laboratory, error) {
	var labs []models.Laboratory
	r.s.with(func(d *data) {
		labs = d.labs.filter(func(l models.Laboratory) bool {
			return l.ClinicID == clinicID && (includeInactive || l.Active)
		})
	})
	sort.SliceStable(labs, func(i, j int) bool { return labs[i].Name < labs[j].Name })
	return labs, nil
}

func (r labRepo) Update(ctx context.Context, lab *models.Laboratory) error {
	var err error
	r.s.with(func(d *data) {
		existing, ok := d.labs.get(lab.ID)
		if !ok || existing.ClinicID != lab.ClinicID {
			err = repository.ErrNotFound
			return
		}
		dup := d.labs.filter(func(l models.Laboratory) bool {
			return l.ID != lab.ID && strings.EqualFold(l.Email, lab.Email)
		})
		if len(dup) > 0 {
			err = repository.ErrDuplicate
			return
		}
		r.s.stamp(&lab.BaseModel)
		d.labs.put(lab.ID, *lab)
	})
	return err
}
