package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/examroutine/core"
	"github.com/trezcool/examroutine/core/exam"
)

const orderingParam = "ordering"

type (
	// CopyRoutineRequest asks for a cross-class routine copy, optionally limited to one month (yyyy-mm).
	CopyRoutineRequest struct {
		exam.CopyRequest
		Month string `json:"month,omitempty"`
	}

	DeleteManyRequest struct {
		IDs []string `json:"ids"`
	}

	DeleteManyResponse struct {
		Deleted int `json:"deleted"`
	}

	RoutinesRequest struct {
		ClassRoutines exam.ClassRoutines `json:"class_routines"`
	}
)

// bindFilter reads the exam list filter from the query string.
// The school is always the caller's.
func bindFilter(ctx echo.Context, schoolID string) exam.QueryFilter {
	params := ctx.QueryParams()
	filter := exam.QueryFilter{
		SchoolID: schoolID,
		Search:   params.Get("search"),
		ClassID:  params.Get("class_id"),
	}
	for _, st := range params["status"] {
		filter.Statuses = append(filter.Statuses, exam.Status(st))
	}
	filter.Orderings = core.ParseOrderings(params.Get(orderingParam), exam.OrderingFields...)
	return filter
}
