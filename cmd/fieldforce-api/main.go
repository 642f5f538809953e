// README: Entry point; loads config, wires stores and services, serves HTTP and MQTT sample ingest until signalled.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"fieldforce/internal/config"
	httptransport "fieldforce/internal/http"
	"fieldforce/internal/infra"
	"fieldforce/internal/modules/assignment"
	"fieldforce/internal/modules/calendar"
	"fieldforce/internal/modules/notification"
	"fieldforce/internal/modules/route"
	"fieldforce/internal/modules/visit"
	"fieldforce/internal/types"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal(err)
	}

	logger, err := infra.NewLogger(cfg.Log.Level, cfg.Log.Format, "fieldforce-api")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("fieldforce-api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		return err
	}
	defer func() { _ = redisClient.Close() }()

	notifier, kafkaWriter, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if kafkaWriter != nil {
		defer func() { _ = kafkaWriter.Close() }()
	}

	var snapper route.Snapper
	if cfg.Maps.APIKey != "" {
		rs, err := route.NewRoadSnapper(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		snapper = rs
	}

	assignmentStore := assignment.NewStore(dbPool)
	assignmentSvc := assignment.NewService(assignmentStore, logger.Named("assignment"))

	visitStore := visit.NewStore(dbPool)

	routeSvc := route.NewService(route.Deps{
		Points:  route.NewStore(dbPool),
		Live:    route.NewLiveStore(redisClient),
		Snapper: snapper,
		Visits:  activeVisits{store: visitStore},
		Config: route.Config{
			MinDisplacementM: cfg.Tracker.MinDisplacementM,
			BatchSize:        cfg.Tracker.BatchSize,
			FlushInterval:    cfg.Tracker.FlushInterval,
			QueueSize:        cfg.Tracker.QueueSize,
		},
		Logger: logger.Named("route"),
	})

	visitSvc := visit.NewService(visit.Deps{
		Store:    visitStore,
		Clinics:  assignment.NewClinicStore(dbPool),
		Notifier: notifier,
		Tracking: routeSvc,
		Logger:   logger.Named("visit"),
		Location: cfg.Location(),
	})

	calendarSvc := calendar.NewService(calendar.Deps{
		Assignments:  assignmentSvc,
		Visits:       visitStore,
		Backfill:     visitSvc,
		Logger:       logger.Named("calendar"),
		Location:     cfg.Location(),
		MaxRangeDays: cfg.Calendar.MaxRangeDays,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Visits:      visitSvc,
		Routes:      routeSvc,
		Calendar:    calendarSvc,
		Assignments: assignmentSvc,
		Logger:      logger.Named("http"),
		Today:       visitSvc.Today,
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	var source *route.MQTTSource
	if cfg.MQTT.Broker != "" {
		client, err := infra.NewMQTT(infra.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			return err
		}
		source, err = route.NewMQTTSource(client, cfg.MQTT.Topic, routeSvc, logger.Named("mqtt"))
		if err != nil {
			return err
		}
		if err := source.Start(); err != nil {
			return err
		}
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if source != nil {
		source.Stop()
	}
	if res := routeSvc.StopAll(shutdownCtx); !res.OK() {
		logger.Warn("route trackers did not flush cleanly", zap.Error(res.Err))
	}
	visitSvc.Drain()
	return nil
}

// buildNotifier fans visit notifications out to every configured backend.
func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (notification.Dispatcher, *kafka.Writer, error) {
	var (
		fanout notification.Fanout
		writer *kafka.Writer
	)
	for _, backend := range cfg.NotifyBackends() {
		switch backend {
		case "log":
			fanout = append(fanout, notification.NewLogDispatcher(logger.Named("notify")))
		case "fcm":
			client, err := infra.NewMessagingClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
			if err != nil {
				return nil, nil, err
			}
			fanout = append(fanout, notification.NewFCMDispatcher(client, ""))
		case "kafka":
			brokers := cfg.KafkaBrokers()
			if len(brokers) == 0 {
				return nil, nil, errors.New("notify backend kafka requires kafka.brokers")
			}
			writer = infra.NewKafkaWriter(brokers, cfg.Kafka.Topic)
			fanout = append(fanout, notification.NewKafkaDispatcher(writer))
		}
	}
	return fanout, writer, nil
}

// activeVisits lets route tracking resume for visits still in progress after a restart.
type activeVisits struct {
	store *visit.Store
}

func (a activeVisits) ActiveVisit(ctx context.Context, visitID types.ID) (types.ID, bool, error) {
	v, err := a.store.Get(ctx, visitID)
	if errors.Is(err, visit.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v.RepresentativeID, v.Active(), nil
}
