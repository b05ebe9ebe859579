package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestApplyPatch_StatusTransitions(t *testing.T) {
	actor := uuid.New()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	testCases := []struct {
		name         string
		from         models.IncidentStatus
		to           models.IncidentStatus
		wantUpdates  int
		wantResolved bool
		wantChanged  bool
	}{
		{name: "pending to active", from: models.StatusPending, to: models.StatusActive, wantUpdates: 1, wantChanged: true},
		{name: "active to resolved", from: models.StatusActive, to: models.StatusResolved, wantUpdates: 1, wantResolved: true, wantChanged: true},
		{name: "closed back to pending", from: models.StatusClosed, to: models.StatusPending, wantUpdates: 1, wantChanged: true},
		{name: "same status", from: models.StatusActive, to: models.StatusActive},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inc := &models.Incident{Status: tc.from}

			tr := applyPatch(inc, models.IncidentPatch{Status: ptr(tc.to)}, actor, now)

			assert.Equal(t, tc.to, inc.Status)
			assert.Len(t, inc.Updates, tc.wantUpdates)
			assert.Equal(t, tc.wantChanged, tr.Changed)
			assert.Equal(t, tc.from, tr.From)
			assert.Equal(t, tc.to, tr.To)
			if tc.wantResolved {
				require.NotNil(t, inc.ResolvedAt)
				assert.Equal(t, now, *inc.ResolvedAt)
			} else {
				assert.Nil(t, inc.ResolvedAt)
			}
			if tc.wantUpdates > 0 {
				assert.Equal(t, actor, inc.Updates[0].UpdatedBy)
				assert.Equal(t, tc.to, inc.Updates[0].Status)
				assert.Equal(t, now, inc.Updates[0].Timestamp)
			}
		})
	}
}

func TestApplyPatch_ReopenKeepsResolvedAt(t *testing.T) {
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inc := &models.Incident{Status: models.StatusResolved, ResolvedAt: &first}
	actor := uuid.New()

	applyPatch(inc, models.IncidentPatch{Status: ptr(models.StatusActive)}, actor, first.Add(time.Hour))
	applyPatch(inc, models.IncidentPatch{Status: ptr(models.StatusResolved)}, actor, first.Add(2*time.Hour))

	require.NotNil(t, inc.ResolvedAt)
	assert.Equal(t, first, *inc.ResolvedAt)
	assert.Len(t, inc.Updates, 2)
}

func TestApplyPatch_FieldsWithoutStatus(t *testing.T) {
	inc := &models.Incident{Title: "old", Status: models.StatusPending}

	tr := applyPatch(inc, models.IncidentPatch{
		Title:    ptr("  new title "),
		Priority: ptr(models.PriorityCritical),
		Location: &models.Point{Longitude: 1, Latitude: 2},
		Address:  &models.Address{City: "Berlin"},
	}, uuid.New(), time.Now())

	assert.False(t, tr.Changed)
	assert.Equal(t, "new title", inc.Title)
	assert.Equal(t, models.PriorityCritical, inc.Priority)
	assert.Equal(t, models.Point{Longitude: 1, Latitude: 2}, inc.Location)
	require.NotNil(t, inc.Address)
	assert.Equal(t, "Berlin", inc.Address.City)
	assert.Empty(t, inc.Updates)
}

func TestValidatePatch(t *testing.T) {
	testCases := []struct {
		name      string
		patch     models.IncidentPatch
		wantField string
	}{
		{name: "empty patch", patch: models.IncidentPatch{}},
		{name: "blank title", patch: models.IncidentPatch{Title: ptr(" ")}, wantField: "title"},
		{name: "unknown status", patch: models.IncidentPatch{Status: ptr(models.IncidentStatus("archived"))}, wantField: "status"},
		{name: "unknown priority", patch: models.IncidentPatch{Priority: ptr(models.Priority("urgent"))}, wantField: "priority"},
		{name: "latitude out of range", patch: models.IncidentPatch{Location: &models.Point{Longitude: 0, Latitude: 91}}, wantField: "location.coordinates"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePatch(tc.patch)
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.wantField)
		})
	}
}

func TestApplyAssignment(t *testing.T) {
	actor := uuid.New()
	now := time.Now().UTC()
	r1, r2 := uuid.New(), uuid.New()

	t.Run("single responder", func(t *testing.T) {
		inc := &models.Incident{Status: models.StatusPending, AssignedTo: []uuid.UUID{uuid.New()}}

		tr := applyAssignment(inc, []uuid.UUID{r1}, actor, now)

		assert.True(t, tr.Changed)
		assert.Equal(t, []uuid.UUID{r1}, inc.AssignedTo)
		assert.Equal(t, models.StatusActive, inc.Status)
		require.Len(t, inc.Updates, 1)
		assert.Equal(t, "1 responder assigned to incident", inc.Updates[0].Message)
	})

	t.Run("already active", func(t *testing.T) {
		inc := &models.Incident{Status: models.StatusActive}

		tr := applyAssignment(inc, []uuid.UUID{r1, r2}, actor, now)

		assert.False(t, tr.Changed)
		require.Len(t, inc.Updates, 1)
		assert.Equal(t, "2 responders assigned to incident", inc.Updates[0].Message)
		assert.Equal(t, models.StatusActive, inc.Updates[0].Status)
	})
}

func TestUniqueIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	assert.Equal(t, []uuid.UUID{a, b}, uniqueIDs([]uuid.UUID{a, b, a, b}))
	assert.Empty(t, uniqueIDs(nil))
}

func TestValidationError_Message(t *testing.T) {
	verr := &ValidationError{}
	verr.add("title", "title is required")
	verr.add("status", "invalid status")
	verr.add("title", "ignored")

	assert.Equal(t, "validation failed: status: invalid status; title: title is required", verr.Error())
	assert.Nil(t, (&ValidationError{}).errOrNil())
}
