package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusProgress(t *testing.T) {
	cases := map[OrderStatus]int{
		OrderPending:    0,
		OrderReceived:   16,
		OrderAnalysis:   33,
		OrderProduction: 50,
		OrderAssembly:   66,
		OrderReady:      83,
		OrderDelivered:  100,
		OrderAdjustment: -1,
		"shipped":       -1,
	}
	for status, want := range cases {
		assert.Equal(t, want, status.Progress(), string(status))
	}
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range OrderPipeline {
		assert.True(t, s.Valid(), string(s))
	}
	assert.True(t, OrderAdjustment.Valid())
	assert.False(t, OrderStatus("PENDING").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestWorkTypeAndUrgency(t *testing.T) {
	assert.True(t, WorkImplantCrown.Valid())
	assert.False(t, WorkType("coroa").Valid())
	assert.True(t, UrgencyExpress.Valid())
	assert.False(t, Urgency("asap").Valid())
}

func TestUserPassword(t *testing.T) {
	u := &User{FirstName: "Ana"}
	require.NoError(t, u.SetPassword("supersecret"))
	assert.NotEqual(t, "supersecret", u.Password)
	assert.True(t, u.CheckPassword("supersecret"))
	assert.False(t, u.CheckPassword("wrong"))
}

func TestUserSanitizeAndName(t *testing.T) {
	lab := "lab-1"
	u := &User{BaseModel: BaseModel{ID: "u-1"}, FirstName: "Diego", LastName: "Lima", Role: RoleProtetico, LaboratoryID: &lab, Password: "hash"}
	s := u.Sanitize()
	assert.Equal(t, "u-1", s.ID)
	assert.Equal(t, &lab, s.LaboratoryID)
	assert.Equal(t, "Diego Lima", u.FullName())
	assert.Equal(t, "Diego", (&User{FirstName: "Diego"}).FullName())
	assert.False(t, RoleProtetico.IsClinicStaff())
	assert.True(t, RoleReceptionist.IsClinicStaff())
}

func TestBeforeCreateAssignsID(t *testing.T) {
	b := &BaseModel{}
	require.NoError(t, b.BeforeCreate(nil))
	assert.Len(t, b.ID, 36)

	b = &BaseModel{ID: "fixed"}
	require.NoError(t, b.BeforeCreate(nil))
	assert.Equal(t, "fixed", b.ID)
}

func TestInitDBRejectsUnknownDriver(t *testing.T) {
	_, err := InitDB(DatabaseConfig{Driver: "sqlite", DSN: "x"})
	assert.Error(t, err)
}

func TestDateAcceptsCalendarDatesAndRFC3339(t *testing.T) {
	var in struct {
		Deadline *Date `json:"deadline"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2025-01-10"}`), &in))
	require.NotNil(t, in.Deadline)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), in.Deadline.Time)

	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2025-01-10T15:30:00-03:00"}`), &in))
	assert.Equal(t, time.Date(2025, 1, 10, 18, 30, 0, 0, time.UTC), in.Deadline.UTC())

	in.Deadline = nil
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":null}`), &in))
	assert.Nil(t, in.Deadline.TimePtr())
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":""}`), &in))
	assert.Nil(t, in.Deadline.TimePtr())

	assert.Error(t, json.Unmarshal([]byte(`{"deadline":"10/01/2025"}`), &in))
	assert.Error(t, json.Unmarshal([]byte(`{"deadline":20250110}`), &in))

	out, err := json.Marshal(NewDate(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.JSONEq(t, `"2025-01-10"`, string(out))
}
