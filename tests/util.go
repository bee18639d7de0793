// Package testutil wires in-memory repositories & services for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	"github.com/edufarm/edufarm/storage/database/inmem"
)

// EventRecorder is a core.Publisher keeping every event it is given.
type EventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

var _ core.Publisher = (*EventRecorder)(nil) // interface compliance check

func (r *EventRecorder) Publish(evt core.Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Types returns the types of the recorded events, in order.
func (r *EventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, evt := range r.events {
		types[i] = evt.Type
	}
	return types
}

func (r *EventRecorder) Events() []core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Event(nil), r.events...)
}

func (r *EventRecorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Env holds a fully wired in-memory application.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Catalog    *catalog.Catalog
	Mail       *emailsvc.ConsoleServiceMock
	Events     *EventRecorder

	UserRepo  user.Repository
	GroupRepo group.Repository
	TaskRepo  task.Repository
	FarmRepo  farm.Repository
	PetRepo   pet.Repository

	UserSvc  user.Service
	GroupSvc group.Service
	TaskSvc  task.Service
	FarmSvc  farm.Service
	PetSvc   pet.Service
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

var loadPasswords sync.Once

// NewValidator registers every custom validation, the password policy included.
func NewValidator() (*validator.Validate, ut.Translator) {
	loadPasswords.Do(func() {
		if err := user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords); err != nil {
			log.Fatalf("user.LoadCommonPasswords(): %v", err)
		}
	})
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// NewEnv wires every service on top of a fresh in-memory database.
// `publishers` receive the domain events along with Env.Events.
func NewEnv(t *testing.T, publishers ...core.Publisher) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	validate, translator := NewValidator()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)

	cat, err := catalog.Load(appfs.FS, appfs.CatalogPath, validate)
	if err != nil {
		t.Fatalf("catalog.Load() failed: %v", err)
	}

	events := new(EventRecorder)
	var publisher core.Publisher = events
	if len(publishers) > 0 {
		all := append([]core.Publisher{events}, publishers...)
		publisher = core.PublisherFunc(func(evt core.Event) {
			for _, p := range all {
				p.Publish(evt)
			}
		})
	}

	db := inmemdb.Open()
	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Catalog:    cat,
		Mail:       emailsvc.NewConsoleServiceMock(conf, logger),
		Events:     events,
		UserRepo:   inmemdb.NewUserRepository(db),
		GroupRepo:  inmemdb.NewGroupRepository(db),
		TaskRepo:   inmemdb.NewTaskRepository(db),
		FarmRepo:   inmemdb.NewFarmRepository(db),
		PetRepo:    inmemdb.NewPetRepository(db),
	}
	env.UserSvc = user.NewService(env.UserRepo, env.Mail, conf)
	env.GroupSvc = group.NewService(env.GroupRepo)
	env.FarmSvc = farm.NewService(env.FarmRepo, cat, publisher, conf)
	env.TaskSvc = task.NewService(env.TaskRepo, env.GroupRepo, env.UserSvc, env.FarmSvc, env.Mail, logger)
	env.PetSvc = pet.NewService(env.PetRepo, cat, env.FarmSvc, env.FarmSvc, publisher, logger)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd == "" {
		pwd = "pwd"
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateGroup(t *testing.T, svc group.Service, teacher user.User, name, subject string) group.Group {
	t.Helper()
	grp, err := svc.Create(context.Background(), teacher, group.NewGroup{Name: name, Subject: subject})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp
}

// JoinGroup makes `students` members of `grp`.
func JoinGroup(t *testing.T, svc group.Service, grp group.Group, students ...user.User) {
	t.Helper()
	for _, s := range students {
		if _, err := svc.Join(context.Background(), s, grp.JoinCode); err != nil {
			t.Fatalf("JoinGroup() failed: %v", err)
		}
	}
}

func CreateTask(t *testing.T, svc task.Service, teacher user.User, nt task.NewTask) task.Task {
	t.Helper()
	tsk, err := svc.CreateTask(context.Background(), teacher, nt)
	if err != nil {
		t.Fatalf("CreateTask() failed: %v", err)
	}
	return tsk
}

// FreezeTime sets core.NowFunc to return `now` until the test ends.
func FreezeTime(t *testing.T, now time.Time) *time.Time {
	t.Helper()
	current := now.UTC()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return current }
	t.Cleanup(func() { core.NowFunc = orig })
	return &current
}
