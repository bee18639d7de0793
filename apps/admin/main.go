package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/core/user"
	appfs "github.com/edufarm/edufarm/fs"
	"github.com/edufarm/edufarm/services/email"
	"github.com/edufarm/edufarm/services/logger"
	"github.com/edufarm/edufarm/storage/database"
	"github.com/edufarm/edufarm/storage/database/inmem"
	"github.com/edufarm/edufarm/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger(conf, "ADMIN : "), conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	if err := user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords); err != nil {
		logger.Error(fmt.Sprintf("loading common passwords: %v", err), err)
	}

	var (
		db      *sql.DB
		usrRepo user.Repository
	)
	if conf.Database.Engine == "memory" {
		usrRepo = inmemdb.NewUserRepository(inmemdb.Open())
	} else {
		sqlxDB, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer sqlxDB.Close()
		db, usrRepo = sqlxDB.DB, sqlxrepos.NewUserRepository(sqlxDB)
	}

	// start CLI
	cli := commandLine{
		db:       db,
		usrSvc:   user.NewService(usrRepo, emailsvc.NewService(conf, logger), conf),
		validate: validate,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
