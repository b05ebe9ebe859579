package access

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/shenikar/emergency_response_system/internal/models"
)

// Object - ресурс, к которому проверяется доступ
type Object string

// Action - действие над ресурсом
type Action string

const (
	ObjIncident  Object = "incident"
	ObjResponder Object = "responder"
)

const (
	ActCreate         Action = "create"
	ActRead           Action = "read"
	ActViewAll        Action = "view_all"
	ActModifyAny      Action = "modify_any"
	ActAssign         Action = "assign"
	ActStats          Action = "stats"
	ActListAvailable  Action = "list_available"
	ActUpdateLocation Action = "update_location"
	ActUpdateStatus   Action = "update_status"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Возможности ролей. Права на конкретный инцидент (автор, назначенный спасатель)
// проверяются отдельно в CanModify.
var rolePolicies = [][]string{
	{string(models.RoleUser), string(ObjIncident), string(ActCreate)},
	{string(models.RoleUser), string(ObjIncident), string(ActRead)},

	{string(models.RoleResponder), string(ObjResponder), string(ActUpdateLocation)},
	{string(models.RoleResponder), string(ObjResponder), string(ActUpdateStatus)},

	{string(models.RoleModerator), string(ObjIncident), string(ActViewAll)},
	{string(models.RoleModerator), string(ObjIncident), string(ActModifyAny)},
	{string(models.RoleModerator), string(ObjIncident), string(ActAssign)},
	{string(models.RoleModerator), string(ObjIncident), string(ActStats)},
	{string(models.RoleModerator), string(ObjResponder), string(ActListAvailable)},
}

// Наследование: спасатель и модератор имеют все базовые права пользователя
var roleInheritance = [][]string{
	{string(models.RoleResponder), string(models.RoleUser)},
	{string(models.RoleModerator), string(models.RoleUser)},
}

// Policy вычисляет область видимости и права на изменение инцидентов.
// Решения не кешируются: роль и назначения могут измениться между запросами.
type Policy struct {
	enforcer *casbin.SyncedEnforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse access model: %w", err)
	}

	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	for _, rule := range rolePolicies {
		if _, err := e.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy %v: %w", rule, err)
		}
	}
	for _, rule := range roleInheritance {
		if _, err := e.AddGroupingPolicy(rule[0], rule[1]); err != nil {
			return nil, fmt.Errorf("failed to add role inheritance %v: %w", rule, err)
		}
	}

	return &Policy{enforcer: e}, nil
}

// Allowed проверяет, разрешено ли роли действие над ресурсом
func (p *Policy) Allowed(role models.Role, obj Object, act Action) bool {
	ok, err := p.enforcer.Enforce(string(role), string(obj), string(act))
	if err != nil {
		return false
	}
	return ok
}

// Visibility возвращает ограничение выборки инцидентов для пользователя
func (p *Policy) Visibility(actor models.Actor) models.Visibility {
	if p.Allowed(actor.Role, ObjIncident, ActViewAll) {
		return models.Visibility{All: true}
	}

	switch actor.Role {
	case models.RoleUser:
		return models.Visibility{
			UserID:          actor.ID,
			IncludeReported: true,
			IncludeAssigned: true,
			IncludeStatuses: []models.IncidentStatus{models.StatusActive},
		}
	case models.RoleResponder:
		return models.Visibility{
			UserID:          actor.ID,
			IncludeAssigned: true,
		}
	default:
		// неизвестная роль ничего не видит
		return models.Visibility{UserID: actor.ID}
	}
}

// CanView применяет область видимости к одному инциденту
func (p *Policy) CanView(actor models.Actor, incident *models.Incident) bool {
	return Matches(p.Visibility(actor), incident)
}

// CanModify - модератор, назначенный спасатель или автор инцидента
func (p *Policy) CanModify(actor models.Actor, incident *models.Incident) bool {
	if p.Allowed(actor.Role, ObjIncident, ActModifyAny) {
		return true
	}
	if incident.IsAssigned(actor.ID) {
		return true
	}
	return incident.ReportedBy == actor.ID
}

// CanAssign - назначать спасателей может только модератор
func (p *Policy) CanAssign(actor models.Actor) bool {
	return p.Allowed(actor.Role, ObjIncident, ActAssign)
}

// Matches проверяет, попадает ли инцидент в область видимости
func Matches(v models.Visibility, incident *models.Incident) bool {
	if v.All {
		return true
	}
	if v.IncludeReported && incident.ReportedBy == v.UserID {
		return true
	}
	if v.IncludeAssigned && incident.IsAssigned(v.UserID) {
		return true
	}
	for _, s := range v.IncludeStatuses {
		if incident.Status == s {
			return true
		}
	}
	return false
}
