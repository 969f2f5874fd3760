package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examroutine/core/exam"
)

type examApi struct {
	svc exam.Service
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc exam.Service) {
	api := examApi{svc: svc}

	eg := g.Group("/exams", jwt)
	eg.GET("", api.query)
	eg.POST("", api.create, adminMiddleware())
	eg.DELETE("", api.destroyMultiple, adminMiddleware())

	// detail endpoints
	dg := eg.Group("/:id", examMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/duplicate", api.duplicate, adminMiddleware())
	dg.POST("/advance", api.advance, adminMiddleware())
	dg.POST("/cancel", api.cancel, adminMiddleware())
	dg.POST("/publish", api.togglePublished, adminMiddleware())
	dg.PUT("/routines", api.saveRoutines, staffMiddleware())
	dg.POST("/routines/copy", api.copyRoutine, staffMiddleware())
	dg.GET("/print", api.print)
	dg.GET("/breakdowns", api.breakdowns)
}

// Handlers

func (api *examApi) query(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	exams, err := api.svc.Filter(ctx.Request().Context(), bindFilter(ctx, actor.SchoolID))
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	if exams == nil {
		exams = []exam.Exam{}
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) create(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	var data exam.Exam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Exam")
	}
	data.SchoolID = actor.SchoolID

	ex, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, ex)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	ex, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) update(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	stored, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	var data exam.Exam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Exam")
	}
	data.ID = stored.ID

	ex, err := api.svc.Update(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	ex, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), actor, ex.ID); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) destroyMultiple(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	var data DeleteManyRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DeleteManyRequest")
	}

	// only exams of the caller's school can be deleted
	rctx := ctx.Request().Context()
	ids := make([]string, 0, len(data.IDs))
	foreign := exam.NewBatchError(len(data.IDs))
	for _, id := range data.IDs {
		ex, err := api.svc.Get(rctx, id)
		if err == nil && ex.SchoolID != actor.SchoolID {
			foreign.Add(id, exam.ErrNotFound)
			continue
		}
		ids = append(ids, id)
	}

	deleted, err := api.svc.DeleteMany(rctx, actor, ids...)
	berr, partial := exam.IsBatchError(err)
	if err != nil && !partial {
		return errors.Wrap(err, "deleting exams")
	}
	if len(foreign.Failed) > 0 {
		if berr == nil {
			berr = exam.NewBatchError(0)
		}
		for id, cause := range foreign.Failed {
			berr.Add(id, cause)
		}
	}
	if berr != nil {
		berr.Attempted = len(ids) + len(foreign.Failed)
		return ctx.JSON(http.StatusMultiStatus, newBatchResponse(berr, DeleteManyResponse{Deleted: deleted}))
	}
	return ctx.JSON(http.StatusOK, DeleteManyResponse{Deleted: deleted})
}

func (api *examApi) duplicate(ctx echo.Context) error {
	return api.act(ctx, http.StatusCreated, "duplicating exam", api.svc.Duplicate)
}

func (api *examApi) advance(ctx echo.Context) error {
	return api.act(ctx, http.StatusOK, "advancing exam", api.svc.Advance)
}

func (api *examApi) cancel(ctx echo.Context) error {
	return api.act(ctx, http.StatusOK, "cancelling exam", api.svc.Cancel)
}

func (api *examApi) togglePublished(ctx echo.Context) error {
	return api.act(ctx, http.StatusOK, "toggling exam publication", api.svc.TogglePublished)
}

type examAction func(ctx context.Context, actor exam.Actor, id string) (exam.Exam, error)

// act runs a single-exam service action on the context exam.
func (api *examApi) act(ctx echo.Context, code int, what string, action examAction) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	stored, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	ex, err := action(ctx.Request().Context(), actor, stored.ID)
	if err != nil {
		return errors.Wrap(err, what)
	}
	return ctx.JSON(code, ex)
}

func (api *examApi) saveRoutines(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	stored, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	var data RoutinesRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoutinesRequest")
	}

	ex, err := api.svc.SaveClassRoutines(ctx.Request().Context(), actor, stored.ID, data.ClassRoutines)
	if err != nil {
		return errors.Wrap(err, "saving class routines")
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) copyRoutine(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context actor")
	}
	stored, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	var data CopyRoutineRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CopyRoutineRequest")
	}
	req := data.CopyRequest
	if data.Month != "" {
		if err = req.Month(data.Month); err != nil {
			return err
		}
	}

	summary, err := api.svc.CopyRoutine(ctx.Request().Context(), actor, stored.ID, req)
	if berr, ok := exam.IsBatchError(err); ok {
		return ctx.JSON(http.StatusMultiStatus, newBatchResponse(berr, summary))
	}
	if err != nil {
		return errors.Wrap(err, "copying routine")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *examApi) print(ctx echo.Context) error {
	stored, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	proj, err := api.svc.Print(ctx.Request().Context(), stored.ID, ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "printing exam")
	}
	return ctx.JSON(http.StatusOK, proj)
}

func (api *examApi) breakdowns(ctx echo.Context) error {
	stored, err := getContextExam(ctx)
	if err != nil {
		return err
	}
	advisories, err := api.svc.Breakdowns(ctx.Request().Context(), stored.ID)
	if err != nil {
		return errors.Wrap(err, "checking breakdowns")
	}
	if advisories == nil {
		advisories = []exam.Advisory{}
	}
	return ctx.JSON(http.StatusOK, advisories)
}
