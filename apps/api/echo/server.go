package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/farm"
	"github.com/edufarm/edufarm/core/group"
	"github.com/edufarm/edufarm/core/pet"
	"github.com/edufarm/edufarm/core/task"
	"github.com/edufarm/edufarm/core/user"
	"github.com/edufarm/edufarm/services/realtime"
	"github.com/edufarm/edufarm/services/upload"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		UserSvc    user.Service
		GroupSvc   group.Service
		TaskSvc    task.Service
		FarmSvc    farm.Service
		PetSvc     pet.Service
		Hub        *realtime.Hub
		Uploads    *upload.Store
	}

	Server struct {
		*http.Server
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	app := echo.New()
	s := &Server{
		Server: &http.Server{
			Addr:    deps.Conf.Server.Address,
			Handler: app,
		},
		app:      app,
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.Logger.SetLevel(log.INFO)

	s.app.GET("/", home(conf))

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConf)
	wsJWT := middleware.JWTWithConfig(s.auth.queryJWTConf())

	registerUserAPI(v1, jwt, s.auth, deps.UserSvc, deps.Validate)
	registerGroupAPI(v1, jwt, s.auth, deps.GroupSvc, deps.TaskSvc, deps.Validate)
	registerTaskAPI(v1, jwt, s.auth, deps.TaskSvc, deps.Validate)
	registerFarmAPI(v1, jwt, deps.FarmSvc, deps.Validate)
	registerPetAPI(v1, jwt, deps.PetSvc, deps.Validate)
	registerRealtimeAPI(v1, wsJWT, s.auth, deps.Hub)
	registerUploadAPI(v1, jwt, deps.Uploads)
}

// Start serves until Shutdown/Close; unexpected failures are sent to Errors().
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the process to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGSTOP:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

// GenerateToken returns a signed JWT for `usr` (login, tests).
func (s *Server) GenerateToken(usr user.User) (string, error) {
	return s.auth.generateToken(s.auth.userClaims(usr))
}

func home(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+conf.AppName+" API!")
	}
}
