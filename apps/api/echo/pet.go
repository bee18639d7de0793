package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core/pet"
)

type petApi struct {
	svc      pet.Service
	validate *validator.Validate
}

func registerPetAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc pet.Service, validate *validator.Validate) {
	api := petApi{
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/pets", jwt, studentMiddleware())
	pg.GET("", api.list)
	pg.POST("", api.adopt)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.rename)
	pg.POST("/:id/feed", api.feed)
	pg.POST("/:id/play", api.play)
	pg.DELETE("/:id", api.release)
}

// Handlers

func (api *petApi) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	pets, err := api.svc.List(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "listing pets")
	}
	if pets == nil {
		pets = []pet.View{}
	}
	return ctx.JSON(http.StatusOK, pets)
}

func (api *petApi) adopt(ctx echo.Context) error {
	var data pet.AdoptPet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdoptPet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	view, err := api.svc.Adopt(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "adopting pet")
	}
	return ctx.JSON(http.StatusCreated, view)
}

func (api *petApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Get(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving pet")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *petApi) rename(ctx echo.Context) error {
	var data pet.RenamePet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RenamePet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	view, err := api.svc.Rename(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "renaming pet")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *petApi) feed(ctx echo.Context) error {
	var data pet.FeedPet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeedPet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	view, err := api.svc.Feed(ctx.Request().Context(), claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "feeding pet")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *petApi) play(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Play(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "playing with pet")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *petApi) release(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Release(ctx.Request().Context(), claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "releasing pet")
	}
	return ctx.NoContent(http.StatusNoContent)
}
