package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core/farm"
)

type farmApi struct {
	svc      farm.Service
	validate *validator.Validate
}

func registerFarmAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc farm.Service, validate *validator.Validate) {
	api := farmApi{
		svc:      svc,
		validate: validate,
	}

	g.GET("/catalog", api.catalog, jwt)

	fg := g.Group("/farm", jwt, studentMiddleware())
	fg.GET("", api.retrieve)
	fg.POST("/zones/:zone/unlock", api.unlockZone)
	fg.POST("/plots/plant", api.plant)
	fg.POST("/plots/harvest", api.harvest)
	fg.POST("/animals", api.buyAnimal)
	fg.POST("/animals/:id/feed", api.feedAnimal)
	fg.POST("/animals/:id/collect", api.collectAnimal)
	fg.POST("/productions", api.startProduction)
	fg.POST("/productions/:id/collect", api.collectProduction)
	fg.POST("/boosters/:id/activate", api.activateBooster)
	fg.POST("/sell", api.sell)
}

// bindAction binds & validates the body of a farm action.
func (api *farmApi) bindAction(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding farm action")
	}
	return api.validate.Struct(data)
}

// Handlers

func (api *farmApi) catalog(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Catalog())
}

func (api *farmApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Get(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "retrieving farm")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) unlockZone(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.UnlockZone(ctx.Request().Context(), claims.Subject, ctx.Param("zone"))
	if err != nil {
		return errors.Wrap(err, "unlocking zone")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) plant(ctx echo.Context) error {
	var data farm.PlantSeed
	if err := api.bindAction(ctx, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Plant(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "planting")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) harvest(ctx echo.Context) error {
	var data farm.HarvestPlot
	if err := api.bindAction(ctx, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.Harvest(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "harvesting")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) buyAnimal(ctx echo.Context) error {
	var data farm.BuyAnimal
	if err := api.bindAction(ctx, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.BuyAnimal(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "buying animal")
	}
	return ctx.JSON(http.StatusCreated, view)
}

func (api *farmApi) feedAnimal(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.FeedAnimal(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "feeding animal")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) collectAnimal(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.CollectAnimal(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "collecting animal product")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) startProduction(ctx echo.Context) error {
	var data farm.StartProduction
	if err := api.bindAction(ctx, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.StartProduction(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "starting production")
	}
	return ctx.JSON(http.StatusCreated, view)
}

func (api *farmApi) collectProduction(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.CollectProduction(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "collecting production")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) activateBooster(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.ActivateBooster(ctx.Request().Context(), claims.Subject, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "activating booster")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *farmApi) sell(ctx echo.Context) error {
	var data farm.SellItem
	if err := api.bindAction(ctx, &data); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.SellItem(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "selling item")
	}
	return ctx.JSON(http.StatusOK, view)
}
