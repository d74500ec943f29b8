package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/notes"
	"github.com/trezcool/darasa/core/user"
)

type notesApi struct {
	svc      *notes.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerNotesAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *notes.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := notesApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	ng := g.Group("/notes", jwt)
	ng.POST("", api.create, teacherOrAdminMiddleware())
	ng.GET("", api.query)
	ng.GET("/:id", api.retrieve)
	ng.PATCH("/:id", api.update, teacherOrAdminMiddleware())
	ng.DELETE("/:id", api.delete, teacherOrAdminMiddleware())
}

// Handlers

func (api *notesApi) create(ctx echo.Context) error {
	var data notes.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	note, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, note)
}

func (api *notesApi) query(ctx echo.Context) error {
	var filter notes.Filter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to Filter")
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	nts, err := api.svc.List(ctx.Request().Context(), actor, filter)
	if err != nil {
		return errors.Wrap(err, "querying notes")
	}
	if nts == nil {
		nts = []notes.Note{}
	}
	return ctx.JSON(http.StatusOK, nts)
}

func (api *notesApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	note, err := api.svc.Get(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting note")
	}
	return ctx.JSON(http.StatusOK, note)
}

func (api *notesApi) update(ctx echo.Context) error {
	var data notes.UpdateNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	note, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating note")
	}
	return ctx.JSON(http.StatusOK, note)
}

func (api *notesApi) delete(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}
