package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasthttp/router"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"golang.org/x/sync/errgroup"

	"deadliner/internal/config"
	"deadliner/internal/handlers"
	"deadliner/internal/logger"
	"deadliner/internal/notifier"
	reminderRepo "deadliner/internal/repository/reminder"
	taskService "deadliner/internal/service/task"
	"deadliner/internal/sweep"
)

var (
	methodErrorDB = []string{"method", "error"}
)

type App struct {
	cfg *config.Config
}

func New(cfg *config.Config) App {
	return App{cfg: cfg}
}

func (app *App) Run() {
	ctx, cancelProcesses := context.WithCancel(context.Background())
	defer cancelProcesses()

	logger.Init()

	db := app.initDB(ctx)
	defer db.Close()

	dbReqCount := kitprometheus.NewCounterFrom(
		prometheus.CounterOpts{
			Namespace: app.cfg.Metrics.Namespace,
			Subsystem: app.cfg.Metrics.Subsystem,
			Name:      "db_request_count",
			Help:      "db request count",
		}, methodErrorDB,
	)
	dbReqDuration := kitprometheus.NewSummaryFrom(
		prometheus.SummaryOpts{
			Namespace: app.cfg.Metrics.Namespace,
			Subsystem: app.cfg.Metrics.Subsystem,
			Name:      "db_request_duration",
			Help:      "db request duration",
		},
		methodErrorDB,
	)

	reminders := reminderRepo.NewRepository(db)
	reminders = reminderRepo.NewInstrumentingMiddleware(dbReqCount, dbReqDuration, reminders)

	tasks := taskService.NewService(db)

	processor := sweep.NewProcessor(
		reminders,
		notifier.NewConsole(),
		sweep.Config{
			Horizon:       app.cfg.Sweep.Horizon,
			MaxConcurrent: app.cfg.Sweep.MaxConcurrent,
		},
		prometheus.DefaultRegisterer,
	)

	apiRouter := router.New()
	handlers.RegisterAll(apiRouter, tasks, processor, reminders, app.cfg.Sweep.CronSecret)

	apiServer := &fasthttp.Server{
		Handler:            apiRouter.Handler,
		MaxRequestBodySize: app.cfg.Server.ReadBufferSize,
		ReadTimeout:        app.cfg.Server.ReadTimeout,
		ReadBufferSize:     app.cfg.Server.ReadBufferSize,
	}

	metricsRouter := router.New()
	metricsRouter.GET("/metrics", fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()))
	metricsServer := &fasthttp.Server{
		Handler:            metricsRouter.Handler,
		MaxRequestBodySize: app.cfg.Server.ReadBufferSize,
		ReadTimeout:        app.cfg.Server.ReadTimeout,
		ReadBufferSize:     app.cfg.Server.ReadBufferSize,
	}

	sweepCron := app.startSweepCron(ctx, processor)

	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.WithFields(log.Fields{
			"port": app.cfg.Server.Port,
		}).Info("starting api server")
		return apiServer.ListenAndServe(":" + app.cfg.Server.Port)
	})
	group.Go(func() error {
		log.WithFields(log.Fields{
			"port": app.cfg.Metrics.Port,
		}).Info("starting metrics server")
		return metricsServer.ListenAndServe(":" + app.cfg.Metrics.Port)
	})

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)

	sig := <-c
	log.WithFields(log.Fields{
		"signal": sig.String(),
	}).Info("received signal, exiting")

	if sweepCron != nil {
		<-sweepCron.Stop().Done()
	}
	_ = apiServer.Shutdown()
	_ = metricsServer.Shutdown()
	cancelProcesses()

	if err := group.Wait(); err != nil {
		log.WithError(err).Error("server run failure")
	}
	log.Info("goodbye")
}

// startSweepCron runs the in-process sweep trigger. The engine tolerates an
// overlapping external trigger thanks to the claim step, so both can coexist.
func (app *App) startSweepCron(ctx context.Context, processor *sweep.Processor) *cron.Cron {
	spec := app.cfg.Sweep.CronSpec
	if spec == "" {
		return nil
	}

	sweepCron := cron.New()
	_, err := sweepCron.AddFunc(spec, func() {
		if _, runErr := processor.Run(ctx, time.Now().UTC()); runErr != nil {
			log.WithError(runErr).Error("Scheduled sweep failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("Invalid sweep cron spec")
	}

	sweepCron.Start()
	log.WithField("spec", spec).Info("sweep cron started")
	return sweepCron
}

func (app *App) initDB(ctx context.Context) *pgxpool.Pool {
	dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		app.cfg.DB.UserName, app.cfg.DB.Password, app.cfg.DB.Address(), app.cfg.DB.DataBase)

	dbpool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("Unable to create connection pool: %v\n", err)
	}

	return dbpool
}
