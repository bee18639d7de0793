package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/task"
	"github.com/edufarm/edufarm/services/upload"
)

type taskApi struct {
	svc      task.Service
	auth     *authenticator
	validate *validator.Validate
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc task.Service, validate *validator.Validate) {
	api := taskApi{
		svc:      svc,
		auth:     auth,
		validate: validate,
	}

	tg := g.Group("/tasks", jwt)
	tg.POST("", api.create, teacherMiddleware())
	tg.GET("", api.list)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update, teacherMiddleware())
	tg.DELETE("/:id", api.destroy, teacherMiddleware())
	tg.POST("/:id/submissions", api.submit, studentMiddleware())
	tg.GET("/:id/submissions", api.listSubmissions, teacherMiddleware())
	tg.GET("/:id/stats", api.stats, teacherMiddleware())

	sg := g.Group("/submissions", jwt)
	sg.POST("/:id/grade", api.grade, teacherMiddleware())
	sg.POST("/:id/return", api.giveBack, teacherMiddleware())
	sg.GET("/:id/comments", api.listComments)
	sg.POST("/:id/comments", api.comment)

	g.GET("/me/summary", api.summary, jwt, studentMiddleware())
}

// Handlers

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.CreateTask(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) list(ctx echo.Context) error {
	var filter task.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []task.StudentTask{})
	}
	filter.Clean()
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	tasks, err := api.svc.ListTasks(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "listing tasks")
	}
	if tasks == nil {
		tasks = []task.StudentTask{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	t, err := api.svc.GetTask(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	t, err := api.svc.UpdateTask(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.DeleteTask(ctx.Request().Context(), usr, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) submit(ctx echo.Context) error {
	var data task.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	if data.AttachmentKey != "" && !upload.ValidKey(data.AttachmentKey) {
		return core.NewValidationError(upload.ErrInvalidKey,
			core.FieldError{Field: "attachment_key", Error: upload.ErrInvalidKey.Error()})
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *taskApi) listSubmissions(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	subs, err := api.svc.ListSubmissions(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if subs == nil {
		subs = []task.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *taskApi) stats(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	stats, err := api.svc.TaskStats(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing task stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *taskApi) grade(ctx echo.Context) error {
	var data task.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "grading submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

// giveBack returns a submission to its student for rework.
func (api *taskApi) giveBack(ctx echo.Context) error {
	var data task.ReturnSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReturnSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sub, err := api.svc.Return(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "returning submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *taskApi) comment(ctx echo.Context) error {
	var data task.NewComment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := api.svc.AddComment(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding comment")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *taskApi) listComments(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	comments, err := api.svc.ListComments(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing comments")
	}
	if comments == nil {
		comments = []task.Comment{}
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *taskApi) summary(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	summary, err := api.svc.StudentSummary(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "computing student summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}
