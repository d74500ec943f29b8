package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/timetable"
	"github.com/trezcool/darasa/core/user"
)

type timetableApi struct {
	svc      *timetable.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerTimetableAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *timetable.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := timetableApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	tg := g.Group("/timetable", jwt)
	tg.POST("/runs", api.recordRun, adminMiddleware())
	tg.GET("/runs", api.queryRuns, adminMiddleware())
	tg.GET("/runs/latest", api.latestRun, adminMiddleware())
	tg.GET("/lessons", api.queryLessons)
}

// Handlers

func (api *timetableApi) recordRun(ctx echo.Context) error {
	var data timetable.NewRun
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRun")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	run, err := api.svc.RecordRun(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "recording timetable run")
	}
	return ctx.JSON(http.StatusCreated, run)
}

func (api *timetableApi) queryRuns(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	runs, err := api.svc.Runs(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "querying timetable runs")
	}
	if runs == nil {
		runs = []timetable.Run{}
	}
	return ctx.JSON(http.StatusOK, runs)
}

// latestRun returns the most recent usable run, the one lessons are served
// from. 404 when no usable run exists yet.
func (api *timetableApi) latestRun(ctx echo.Context) error {
	run, err := api.svc.LatestTimetable(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting latest timetable run")
	}
	return ctx.JSON(http.StatusOK, run)
}

// queryLessons returns the latest usable timetable joined with the tuitions
// visible to the caller.
func (api *timetableApi) queryLessons(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lessons, err := api.svc.ScheduledLessons(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "querying scheduled lessons")
	}
	if lessons == nil {
		lessons = []timetable.ScheduledLesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}
