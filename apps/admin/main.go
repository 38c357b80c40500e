package main

import (
	"os"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/admin"
	"github.com/trezcool/virtualtutor/core/student"
	emailsvc "github.com/trezcool/virtualtutor/services/email"
	logsvc "github.com/trezcool/virtualtutor/services/logger"
	"github.com/trezcool/virtualtutor/storage/database"
	sqlxrepos "github.com/trezcool/virtualtutor/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.New(conf, "ADMIN", "")
	defer logger.Sync()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()
	xdb := sqlxrepos.NewDB(db, conf.Database.Engine)

	// start CLI
	cli := commandLine{
		conf:       conf,
		migrator:   migrator{db: db},
		adminSvc:   admin.NewService(sqlxrepos.NewAdminRepository(xdb)),
		studentSvc: student.NewService(sqlxrepos.NewStudentRepository(xdb), emailsvc.NewConsoleService(conf, logger)),
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
