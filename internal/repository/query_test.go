package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestBuildIncidentWhere_Moderator(t *testing.T) {
	w := buildIncidentWhere(models.IncidentFilter{}, models.Visibility{All: true})

	assert.Equal(t, "", w.clause())
	assert.Empty(t, w.args)
}

func TestBuildIncidentWhere_UserWithFilters(t *testing.T) {
	userID := uuid.New()
	filter := models.IncidentFilter{
		Type:   models.TypeFire,
		Status: models.StatusActive,
		Near: &models.GeoFilter{
			Center:       models.Point{Longitude: 13.4, Latitude: 52.5},
			RadiusMeters: 2000,
		},
	}
	visibility := models.Visibility{
		UserID:          userID,
		IncludeReported: true,
		IncludeAssigned: true,
		IncludeStatuses: []models.IncidentStatus{models.StatusActive},
	}

	w := buildIncidentWhere(filter, visibility)

	assert.Equal(t,
		" WHERE (reported_by = $1 OR $2 = ANY(assigned_to) OR status = ANY($3::text[]))"+
			" AND type = $4 AND status = $5"+
			" AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography, $8)",
		w.clause(),
	)
	assert.Equal(t, []any{userID, userID, []string{"active"}, "fire", "active", 13.4, 52.5, 2000}, w.args)
}

func TestBuildIncidentWhere_ResponderAssignedOnly(t *testing.T) {
	userID := uuid.New()

	w := buildIncidentWhere(models.IncidentFilter{Priority: models.PriorityHigh}, models.Visibility{UserID: userID, IncludeAssigned: true})

	assert.Equal(t, " WHERE ($1 = ANY(assigned_to)) AND priority = $2", w.clause())
	assert.Equal(t, []any{userID, "high"}, w.args)
}

func TestBuildIncidentWhere_EmptyVisibilityMatchesNothing(t *testing.T) {
	w := buildIncidentWhere(models.IncidentFilter{}, models.Visibility{UserID: uuid.New()})

	assert.Equal(t, " WHERE FALSE", w.clause())
}

func TestWhereBuilder_ArgNumbering(t *testing.T) {
	w := &whereBuilder{}

	assert.Equal(t, "$1", w.arg("a"))
	assert.Equal(t, "$2", w.arg(10))
	assert.Len(t, w.args, 2)
}
