package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/edufarm/edufarm/apps/api/echo"
	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/catalog"
	"github.com/edufarm/edufarm/core/farm"
	"github.com/edufarm/edufarm/core/group"
	"github.com/edufarm/edufarm/core/pet"
	"github.com/edufarm/edufarm/core/task"
	"github.com/edufarm/edufarm/core/user"
	appfs "github.com/edufarm/edufarm/fs"
	"github.com/edufarm/edufarm/services/email"
	"github.com/edufarm/edufarm/services/logger"
	"github.com/edufarm/edufarm/services/realtime"
	"github.com/edufarm/edufarm/services/upload"
	"github.com/edufarm/edufarm/storage/database"
	"github.com/edufarm/edufarm/storage/database/inmem"
	"github.com/edufarm/edufarm/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage holds the repositories of the configured database engine.
type Storage struct {
	dig.Out
	Users  user.Repository
	Groups group.Repository
	Tasks  task.Repository
	Farms  farm.Repository
	Pets   pet.Repository
	Close  func() error `name:"dbClose"`
}

type DBCloseParam struct {
	dig.In
	Close func() error `name:"dbClose"`
}

type serverParams struct {
	dig.In
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

func newLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf, "API : "), conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf, "DB : "), conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.Engine == "memory" {
		loggerParam.Logger.Info("using the in-memory database: data is lost on exit")
		db := inmemdb.Open()
		return Storage{
			Users:  inmemdb.NewUserRepository(db),
			Groups: inmemdb.NewGroupRepository(db),
			Tasks:  inmemdb.NewTaskRepository(db),
			Farms:  inmemdb.NewFarmRepository(db),
			Pets:   inmemdb.NewPetRepository(db),
			Close:  func() error { return nil },
		}
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = database.Migrate(db.DB); err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return Storage{
		Users:  sqlxrepos.NewUserRepository(db),
		Groups: sqlxrepos.NewGroupRepository(db),
		Tasks:  sqlxrepos.NewTaskRepository(db),
		Farms:  sqlxrepos.NewFarmRepository(db),
		Pets:   sqlxrepos.NewPetRepository(db),
		Close:  db.Close,
	}
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// newCatalog loads conf.Game.CatalogPath when set, the embedded catalog otherwise.
func newCatalog(conf *core.Config, validate *validator.Validate) (*catalog.Catalog, error) {
	if conf.Game.CatalogPath != "" {
		return catalog.Load(os.DirFS("."), conf.Game.CatalogPath, validate)
	}
	return catalog.Load(appfs.FS, appfs.CatalogPath, validate)
}

func newPublisher(hub *realtime.Hub) core.Publisher { return hub }

func newTaskService(
	repo task.Repository,
	groups group.Repository,
	users user.Service,
	farms farm.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) task.Service {
	return task.NewService(repo, groups, users, farms, mailSvc, logger)
}

func newPetService(
	repo pet.Repository,
	cat *catalog.Catalog,
	farms farm.Service,
	publisher core.Publisher,
	logger core.Logger,
) pet.Service {
	return pet.NewService(repo, cat, farms, farms, publisher, logger)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		GroupSvc:   p.GroupSvc,
		TaskSvc:    p.TaskSvc,
		FarmSvc:    p.FarmSvc,
		PetSvc:     p.PetSvc,
		Hub:        p.Hub,
		Uploads:    p.Uploads,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newValidator))
	must(c.Provide(newCatalog))
	must(c.Provide(realtime.NewHub))
	must(c.Provide(newPublisher))
	must(c.Provide(upload.NewStore))
	must(c.Provide(user.NewService))
	must(c.Provide(group.NewService))
	must(c.Provide(farm.NewService))
	must(c.Provide(newTaskService))
	must(c.Provide(newPetService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
