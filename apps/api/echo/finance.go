package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/finance"
	"github.com/trezcool/darasa/core/user"
)

type financeApi struct {
	svc      *finance.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerFinanceAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *finance.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := financeApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	tg := g.Group("/tuition-logs", jwt)
	tg.POST("", api.createTuitionLog, teacherOrAdminMiddleware())
	tg.GET("", api.queryTuitionLogs)
	tg.GET("/:id", api.retrieveTuitionLog)
	tg.POST("/:id/void", api.voidTuitionLog, teacherOrAdminMiddleware())
	tg.PUT("/:id", api.correctTuitionLog, teacherOrAdminMiddleware())

	pg := g.Group("/payment-logs", jwt)
	pg.POST("", api.createPaymentLog, teacherOrAdminMiddleware())
	pg.GET("", api.queryPayments)
	pg.POST("/:id/void", api.voidPaymentLog, teacherOrAdminMiddleware())
	pg.PUT("/:id", api.correctPaymentLog, teacherOrAdminMiddleware())

	g.GET("/summary", api.summary, jwt)
}

// Handlers

func (api *financeApi) createTuitionLog(ctx echo.Context) error {
	var data finance.NewTuitionLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTuitionLog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	log, err := api.svc.CreateTuitionLog(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating tuition log")
	}
	return ctx.JSON(http.StatusCreated, log)
}

// queryTuitionLogs renders the ledger for the caller's portal: teachers see
// per-parent paid statuses, parents see their own share only, students see
// lesson history without amounts.
func (api *financeApi) queryTuitionLogs(ctx echo.Context) error {
	var filter finance.LogFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to LogFilter")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()

	switch {
	case actor.IsTeacher() || actor.IsAdmin():
		views, err := api.svc.TeacherLogs(rctx, actor, filter)
		if err != nil {
			return errors.Wrap(err, "querying teacher logs")
		}
		return ctx.JSON(http.StatusOK, views)
	case actor.IsParent():
		views, err := api.svc.ParentLogs(rctx, actor, filter)
		if err != nil {
			return errors.Wrap(err, "querying parent logs")
		}
		return ctx.JSON(http.StatusOK, views)
	case actor.IsStudent():
		views, err := api.svc.StudentLogs(rctx, actor, filter)
		if err != nil {
			return errors.Wrap(err, "querying student logs")
		}
		return ctx.JSON(http.StatusOK, views)
	}
	return errHttpForbidden
}

func (api *financeApi) retrieveTuitionLog(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()
	id := ctx.Param("id")

	switch {
	case actor.IsTeacher() || actor.IsAdmin():
		view, err := api.svc.TeacherLog(rctx, actor, id)
		if err != nil {
			return errors.Wrap(err, "getting teacher log")
		}
		return ctx.JSON(http.StatusOK, view)
	case actor.IsParent():
		view, err := api.svc.ParentLog(rctx, actor, id)
		if err != nil {
			return errors.Wrap(err, "getting parent log")
		}
		return ctx.JSON(http.StatusOK, view)
	case actor.IsStudent():
		view, err := api.svc.StudentLog(rctx, actor, id)
		if err != nil {
			return errors.Wrap(err, "getting student log")
		}
		return ctx.JSON(http.StatusOK, view)
	}
	return errHttpForbidden
}

func (api *financeApi) voidTuitionLog(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.VoidTuitionLog(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "voiding tuition log")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *financeApi) correctTuitionLog(ctx echo.Context) error {
	var data finance.NewTuitionLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTuitionLog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	log, err := api.svc.CorrectTuitionLog(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "correcting tuition log")
	}
	return ctx.JSON(http.StatusOK, log)
}

func (api *financeApi) createPaymentLog(ctx echo.Context) error {
	var data finance.NewPaymentLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPaymentLog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	log, err := api.svc.CreatePaymentLog(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating payment log")
	}
	return ctx.JSON(http.StatusCreated, log)
}

func (api *financeApi) queryPayments(ctx echo.Context) error {
	var filter finance.PaymentFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to PaymentFilter")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	views, err := api.svc.Payments(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *financeApi) voidPaymentLog(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.VoidPaymentLog(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "voiding payment log")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *financeApi) correctPaymentLog(ctx echo.Context) error {
	var data finance.NewPaymentLog
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPaymentLog")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	log, err := api.svc.CorrectPaymentLog(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "correcting payment log")
	}
	return ctx.JSON(http.StatusOK, log)
}

// summary dispatches on the caller's portal: parents get their debt position
// per teacher, teachers get their dues per parent. Admin picks a side with
// `teacher_id` or `parent_id`.
func (api *financeApi) summary(ctx echo.Context) error {
	var filter finance.SummaryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to SummaryFilter")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rctx := ctx.Request().Context()

	switch {
	case actor.IsParent(), actor.IsAdmin() && filter.ParentID != "":
		view, err := api.svc.ParentSummary(rctx, actor, filter)
		if err != nil {
			return errors.Wrap(err, "getting parent summary")
		}
		return ctx.JSON(http.StatusOK, view)
	case actor.IsTeacher() || actor.IsAdmin():
		view, err := api.svc.TeacherSummary(rctx, actor, filter)
		if err != nil {
			return errors.Wrap(err, "getting teacher summary")
		}
		return ctx.JSON(http.StatusOK, view)
	}
	return errHttpForbidden
}
