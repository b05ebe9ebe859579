package access

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy(t *testing.T) *Policy {
	p, err := NewPolicy()
	require.NoError(t, err)
	return p
}

func TestAllowed_RoleCapabilities(t *testing.T) {
	p := newTestPolicy(t)

	tests := []struct {
		role models.Role
		obj  Object
		act  Action
		want bool
	}{
		{models.RoleUser, ObjIncident, ActCreate, true},
		{models.RoleUser, ObjIncident, ActAssign, false},
		{models.RoleUser, ObjResponder, ActUpdateLocation, false},
		{models.RoleResponder, ObjIncident, ActCreate, true},
		{models.RoleResponder, ObjResponder, ActUpdateLocation, true},
		{models.RoleResponder, ObjResponder, ActUpdateStatus, true},
		{models.RoleResponder, ObjIncident, ActAssign, false},
		{models.RoleResponder, ObjResponder, ActListAvailable, false},
		{models.RoleModerator, ObjIncident, ActAssign, true},
		{models.RoleModerator, ObjIncident, ActViewAll, true},
		{models.RoleModerator, ObjIncident, ActStats, true},
		{models.RoleModerator, ObjIncident, ActCreate, true},
		{models.RoleModerator, ObjResponder, ActListAvailable, true},
		{models.RoleModerator, ObjResponder, ActUpdateLocation, false},
		{models.Role("ghost"), ObjIncident, ActCreate, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.obj)+"/"+string(tt.act), func(t *testing.T) {
			assert.Equal(t, tt.want, p.Allowed(tt.role, tt.obj, tt.act))
		})
	}
}

func TestVisibility_ByRole(t *testing.T) {
	p := newTestPolicy(t)
	me := uuid.New()
	other := uuid.New()

	reportedByMe := &models.Incident{ReportedBy: me, Status: models.StatusPending}
	activeOther := &models.Incident{ReportedBy: other, Status: models.StatusActive}
	assignedToMe := &models.Incident{ReportedBy: other, Status: models.StatusResolved, AssignedTo: []uuid.UUID{me}}
	pendingOther := &models.Incident{ReportedBy: other, Status: models.StatusPending}

	user := models.Actor{ID: me, Role: models.RoleUser}
	assert.True(t, p.CanView(user, reportedByMe))
	assert.True(t, p.CanView(user, activeOther))
	assert.True(t, p.CanView(user, assignedToMe))
	assert.False(t, p.CanView(user, pendingOther))

	responder := models.Actor{ID: me, Role: models.RoleResponder}
	assert.False(t, p.CanView(responder, reportedByMe))
	assert.False(t, p.CanView(responder, activeOther))
	assert.True(t, p.CanView(responder, assignedToMe))
	assert.False(t, p.CanView(responder, pendingOther))

	moderator := models.Actor{ID: me, Role: models.RoleModerator}
	assert.True(t, p.Visibility(moderator).All)
	assert.True(t, p.CanView(moderator, pendingOther))

	unknown := models.Actor{ID: me, Role: models.Role("ghost")}
	assert.False(t, p.CanView(unknown, reportedByMe))
}

func TestCanModify(t *testing.T) {
	p := newTestPolicy(t)
	reporter := uuid.New()
	responder := uuid.New()
	stranger := uuid.New()
	incident := &models.Incident{ReportedBy: reporter, AssignedTo: []uuid.UUID{responder}, Status: models.StatusActive}

	assert.True(t, p.CanModify(models.Actor{ID: reporter, Role: models.RoleUser}, incident))
	assert.True(t, p.CanModify(models.Actor{ID: responder, Role: models.RoleResponder}, incident))
	assert.True(t, p.CanModify(models.Actor{ID: stranger, Role: models.RoleModerator}, incident))
	assert.False(t, p.CanModify(models.Actor{ID: stranger, Role: models.RoleUser}, incident))
	assert.False(t, p.CanModify(models.Actor{ID: stranger, Role: models.RoleResponder}, incident))
}

func TestCanAssign(t *testing.T) {
	p := newTestPolicy(t)

	assert.True(t, p.CanAssign(models.Actor{ID: uuid.New(), Role: models.RoleModerator}))
	assert.False(t, p.CanAssign(models.Actor{ID: uuid.New(), Role: models.RoleResponder}))
	assert.False(t, p.CanAssign(models.Actor{ID: uuid.New(), Role: models.RoleUser}))
}
