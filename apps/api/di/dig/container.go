package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/shulebus/apps/api/echo"
	"github.com/trezcool/shulebus/core"
	"github.com/trezcool/shulebus/core/address"
	"github.com/trezcool/shulebus/core/notify"
	"github.com/trezcool/shulebus/core/route"
	"github.com/trezcool/shulebus/core/student"
	"github.com/trezcool/shulebus/core/tracking"
	"github.com/trezcool/shulebus/core/trip"
	emailsvc "github.com/trezcool/shulebus/services/email"
	"github.com/trezcool/shulebus/services/ingest"
	logsvc "github.com/trezcool/shulebus/services/logger"
	smssvc "github.com/trezcool/shulebus/services/sms"
	"github.com/trezcool/shulebus/storage/database"
	mongodb "github.com/trezcool/shulebus/storage/database/mongo"
	sqlxrepos "github.com/trezcool/shulebus/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	tripParams struct {
		dig.In
		Tx          core.Transactor
		Repo        trip.Repository
		Routes      route.Repository
		Students    student.Repository
		Addresses   address.Repository
		Notifier    trip.Notifier
		Broadcaster trip.Broadcaster
		Archive     trip.LocationArchive
		Logger      core.Logger
	}

	serverParams struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		TripSvc    trip.Service
		RouteSvc   route.Service
		AddressSvc address.Service
		Gateway    *tracking.Gateway
	}
)

func newZapLogger(conf *core.Config) *zap.Logger {
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatal(errors.Wrap(err, "building zap logger").Error())
	}
	return zl
}

func newLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("db"), conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newTransactor(db *sqlx.DB) core.Transactor {
	return database.NewTransactor(db)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newSMSService(conf *core.Config, logger core.Logger) core.SMSService {
	if conf.Debug || !conf.SMS.Enabled {
		return smssvc.NewConsoleService(logger)
	}
	return smssvc.NewAfricasTalkingService(conf, logger)
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	trip.InitValidators(validate, translator)
	route.InitValidators(validate, translator)
	address.InitValidators(validate, translator)
	return validate
}

// newMongoClient returns nil when the location archive is disabled.
func newMongoClient(conf *core.Config, logger core.Logger) *mongo.Client {
	if !conf.Mongo.Enabled {
		return nil
	}
	client, err := mongodb.Connect(context.Background(), conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up mongo: %v", err), err)
	}
	return client
}

func newLocationArchive(conf *core.Config, client *mongo.Client, logger core.Logger) trip.LocationArchive {
	if client == nil {
		return nil
	}
	archive := mongodb.NewArchive(client, conf.Mongo.Database)
	if err := archive.EnsureIndexes(context.Background()); err != nil {
		logger.Warn("could not create location archive indexes", err)
	}
	return archive
}

func newGateway(hub *tracking.Hub, logger core.Logger) *tracking.Gateway {
	return tracking.NewGateway(hub, logger)
}

func newTripService(p tripParams) trip.Service {
	return trip.NewService(trip.Deps{
		Tx:          p.Tx,
		Repo:        p.Repo,
		Routes:      p.Routes,
		StudentRepo: p.Students,
		Addresses:   p.Addresses,
		Notifier:    p.Notifier,
		Broadcaster: p.Broadcaster,
		Archive:     p.Archive,
		Logger:      p.Logger,
	})
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		TripSvc:    p.TripSvc,
		RouteSvc:   p.RouteSvc,
		AddressSvc: p.AddressSvc,
		Gateway:    p.Gateway,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// ambient
	must(c.Provide(core.NewConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidator))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(newTransactor))
	must(c.Provide(sqlxrepos.NewTripRepository, dig.As(new(trip.Repository))))
	must(c.Provide(sqlxrepos.NewRouteRepository, dig.As(new(route.Repository))))
	must(c.Provide(sqlxrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(sqlxrepos.NewAddressRepository, dig.As(new(address.Repository))))
	must(c.Provide(newMongoClient))
	must(c.Provide(newLocationArchive))

	// services
	must(c.Provide(newEmailService))
	must(c.Provide(newSMSService))
	must(c.Provide(notify.NewDispatcher, dig.As(new(trip.Notifier))))
	must(c.Provide(tracking.NewHub))
	must(c.Provide(func(hub *tracking.Hub) trip.Broadcaster { return hub }))
	must(c.Provide(newGateway))
	must(c.Provide(newTripService))
	must(c.Provide(route.NewService))
	must(c.Provide(address.NewService))
	must(c.Provide(ingest.NewBridge))

	// apps
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
