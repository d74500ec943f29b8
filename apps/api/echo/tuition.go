package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/tuition"
	"github.com/trezcool/darasa/core/user"
)

type tuitionApi struct {
	svc    *tuition.Service
	usrSvc user.Service
}

func registerTuitionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *tuition.Service, usrSvc user.Service) {
	api := tuitionApi{
		svc:    svc,
		usrSvc: usrSvc,
	}

	tg := g.Group("/tuitions", jwt)
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
	tg.POST("/regenerate", api.regenerate, adminMiddleware())
	tg.POST("/:id/meeting", api.attachMeeting, teacherOrAdminMiddleware())
	tg.DELETE("/:id/meeting", api.detachMeeting, teacherOrAdminMiddleware())
}

// Handlers

func (api *tuitionApi) query(ctx echo.Context) error {
	var filter tuition.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tuts, err := api.svc.List(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying tuitions")
	}
	views := make([]tuition.Tuition, 0, len(tuts))
	for _, tut := range tuts {
		views = append(views, tut.ViewFor(actor))
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *tuitionApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	rctx := ctx.Request().Context()
	tut, err := api.svc.Get(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting tuition")
	}
	if !api.canSee(rctx, actor, tut) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, tut.ViewFor(actor))
}

func (api *tuitionApi) canSee(rctx context.Context, actor user.User, tut tuition.Tuition) bool {
	if actor.IsAdmin() || tut.TeacherID == actor.ID || tut.HasStudent(actor.ID) {
		return true
	}
	if actor.IsParent() {
		children, err := api.usrSvc.ChildrenOf(rctx, actor.ID)
		if err != nil {
			return false
		}
		for _, child := range children {
			if tut.HasStudent(child.UserID) {
				return true
			}
		}
	}
	return false
}

func (api *tuitionApi) regenerate(ctx echo.Context) error {
	tuts, err := api.svc.RegenerateAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "regenerating tuitions")
	}
	return ctx.JSON(http.StatusOK, tuts)
}

func (api *tuitionApi) attachMeeting(ctx echo.Context) error {
	var data AttachMeetingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttachMeetingRequest")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tut, err := api.svc.AttachMeeting(ctx.Request().Context(), actor, ctx.Param("id"), data.Provider)
	if err != nil {
		return errors.Wrap(err, "attaching meeting")
	}
	return ctx.JSON(http.StatusOK, tut)
}

func (api *tuitionApi) detachMeeting(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.DetachMeeting(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "detaching meeting")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type AttachMeetingRequest struct {
	Provider string `json:"provider"`
}
