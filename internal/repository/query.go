package repository

import (
	"fmt"
	"strings"

	"github.com/shenikar/emergency_response_system/internal/models"
)

// whereBuilder собирает условие WHERE с позиционными параметрами pgx
type whereBuilder struct {
	conds []string
	args  []any
}

// arg добавляет параметр и возвращает его плейсхолдер
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// visibility ограничивает выборку инцидентами, доступными пользователю
func (w *whereBuilder) visibility(v models.Visibility) {
	if v.All {
		return
	}

	var ors []string
	if v.IncludeReported {
		ors = append(ors, "reported_by = "+w.arg(v.UserID))
	}
	if v.IncludeAssigned {
		ors = append(ors, w.arg(v.UserID)+" = ANY(assigned_to)")
	}
	if len(v.IncludeStatuses) > 0 {
		statuses := make([]string, len(v.IncludeStatuses))
		for i, s := range v.IncludeStatuses {
			statuses[i] = string(s)
		}
		ors = append(ors, "status = ANY("+w.arg(statuses)+"::text[])")
	}

	if len(ors) == 0 {
		w.add("FALSE")
		return
	}
	w.add("(" + strings.Join(ors, " OR ") + ")")
}

func buildIncidentWhere(f models.IncidentFilter, v models.Visibility) *whereBuilder {
	w := &whereBuilder{}
	w.visibility(v)

	if f.Type != "" {
		w.add("type = " + w.arg(string(f.Type)))
	}
	if f.Status != "" {
		w.add("status = " + w.arg(string(f.Status)))
	}
	if f.Priority != "" {
		w.add("priority = " + w.arg(string(f.Priority)))
	}
	if f.Near != nil {
		w.add(fmt.Sprintf(
			"ST_DWithin(location, ST_SetSRID(ST_MakePoint(%s, %s), 4326)::geography, %s)",
			w.arg(f.Near.Center.Longitude),
			w.arg(f.Near.Center.Latitude),
			w.arg(f.Near.RadiusMeters),
		))
	}
	return w
}
