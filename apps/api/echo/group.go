package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core/group"
	"github.com/edufarm/edufarm/core/task"
)

type groupApi struct {
	svc      group.Service
	tasks    task.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerGroupAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	auth *authenticator,
	svc group.Service,
	tasks task.Service,
	validate *validator.Validate,
) {
	api := groupApi{
		svc:      svc,
		tasks:    tasks,
		auth:     auth,
		validate: validate,
	}

	gg := g.Group("/groups", jwt)
	gg.POST("", api.create, teacherMiddleware())
	gg.GET("", api.list)
	gg.POST("/join", api.join, studentMiddleware())

	// detail endpoints
	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update, teacherMiddleware())
	gg.DELETE("/:id", api.destroy, teacherMiddleware())
	gg.GET("/:id/members", api.listMembers, teacherMiddleware())
	gg.DELETE("/:id/members/:student", api.removeMember, teacherMiddleware())
	gg.POST("/:id/code", api.regenerateCode, teacherMiddleware())
	gg.GET("/:id/stats", api.stats, teacherMiddleware())
}

// Handlers

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grp, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) list(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	groups, err := api.svc.ListForUser(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	if groups == nil {
		groups = []group.Group{}
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) join(ctx echo.Context) error {
	var data group.JoinGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to JoinGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grp, err := api.svc.Join(ctx.Request().Context(), usr, data.Code)
	if err != nil {
		return errors.Wrap(err, "joining group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	var data group.UpdateGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGroup")
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	grp, err := api.svc.Update(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) listMembers(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	members, err := api.svc.ListMembers(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	if members == nil {
		members = []group.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *groupApi) removeMember(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.RemoveMember(ctx.Request().Context(), usr, ctx.Param("id"), ctx.Param("student")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) regenerateCode(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	grp, err := api.svc.RegenerateCode(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "regenerating join code")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) stats(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.tasks.GroupStats(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing group stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}
