package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/shulebus/core"
	logsvc "github.com/trezcool/shulebus/services/logger"
	"github.com/trezcool/shulebus/storage/database"
	sqlxrepos "github.com/trezcool/shulebus/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer logger.Sync()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := newCommandLine(db.DB, sqlxrepos.NewTripRepository(db))
	err = cli.run(os.Args)
	if cerr := db.Close(); cerr != nil {
		logger.Error("closing database", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("admin: %v", err), err)
		}
		logger.Sync()
		os.Exit(1)
	}
}
