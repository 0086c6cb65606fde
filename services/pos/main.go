package main

import (
	"context"
	"embed"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/pos/pkg"
	"github.com/appetiteclub/pos/pkg/enums/platform"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/aquamarinepk/aqm/seed"

	"github.com/appetiteclub/pos/services/pos/internal/kitchenhub"
	"github.com/appetiteclub/pos/services/pos/internal/mongo"
	"github.com/appetiteclub/pos/services/pos/internal/pos"
)

//go:embed seed.json
var seedFS embed.FS

const (
	appNamespace = "POS"
	appName      = "pos"
	appVersion   = "0.1.0"
)

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup with error: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := aqm.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	seedCtx, cancelSeeds := context.WithCancel(ctx)
	defer cancelSeeds()

	lifecycle := []interface{}{}

	baseRepo := mongo.NewBaseRepo(config, logger)
	if err := baseRepo.Start(ctx); err != nil {
		log.Fatalf("%s(%s) cannot start repository: %v", appName, appVersion, err)
	}

	db := baseRepo.GetDatabase()
	if db == nil {
		err := errors.New("cannot get pos database")
		log.Fatalf("%s(%s) cannot initialize database: %v", appName, appVersion, err)
	}

	repos := pos.Repos{
		SectionRepo:  mongo.NewSectionRepo(db),
		TableRepo:    mongo.NewTableRepo(db),
		OrderRepo:    mongo.NewOrderRepo(db),
		DeliveryRepo: mongo.NewDeliveryRepo(db),
		Counter:      mongo.NewCounterRepo(db),
	}

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	publisher, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	subscriber, err := pkg.NewNATSSubscriber(natsURL, logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS subscriber: %v", appName, appVersion, err)
	}

	natsLifecycle := aqm.LifecycleHooks{
		OnStop: func(context.Context) error {
			return errors.Join(subscriber.Close(), publisher.Close())
		},
	}
	lifecycle = append(lifecycle, natsLifecycle)

	feeds, err := pos.NewFeeds(platformClients(config, logger), logger)
	if err != nil {
		log.Fatalf("%s(%s) cannot configure delivery feeds: %v", appName, appVersion, err)
	}

	token, _ := config.GetString("auth.token")
	if token == "" {
		logger.Info("auth.token is empty, terminal requests are not authenticated")
	}

	hub := kitchenhub.New(kitchenhub.Deps{
		Publisher:  publisher,
		Subscriber: subscriber,
		Token:      token,
	}, logger)
	lifecycle = append(lifecycle, hub)

	hd := pos.HandlerDeps{
		Repos:     repos,
		Feeds:     feeds,
		Publisher: publisher,
	}

	handler := pos.NewHandler(hd, config, logger)

	tracker := seed.NewMongoTracker(db)

	// Choose seeding strategy based on config
	demoEnabled, _ := config.GetString("seeding.demo")
	var seedingFunc func(ctx context.Context) error
	if demoEnabled == "true" {
		logger.Info("Demo seeding enabled for pos service")
		seedingFunc = pos.DemoSeedingFunc(seedCtx, tracker, repos, seedFS, logger)
	} else {
		seedingFunc = pos.SeedingFunc(seedCtx, tracker, repos, seedFS, logger)
	}

	seedHooks := aqm.LifecycleHooks{
		OnStart: seedingFunc,
		OnStop:  pos.StopFunc(cancelSeeds),
	}
	lifecycle = append(lifecycle, seedHooks)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	// Terminals reach the backend over the restaurant LAN only.
	stack = append(stack, middleware.InternalOnly())

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler, hub),
		aqm.WithLifecycle(lifecycle...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		_ = baseRepo.Stop(context.Background())
		log.Fatalf("%s(%s) stopped with error: %v", appName, appVersion, err)
	}

	_ = baseRepo.Stop(context.Background())
	logger.Infof("%s(%s) stopped", appName, appVersion)
}

// platformClients builds one integration client per platform that has a
// delivery.<platform>.url configured.
func platformClients(config *aqm.Config, logger aqm.Logger) map[platform.Platform]pos.Requester {
	clients := make(map[platform.Platform]pos.Requester)
	for _, p := range platform.All {
		url, _ := config.GetString("delivery." + p.Code() + ".url")
		if url == "" {
			continue
		}
		clients[p] = aqm.NewServiceClient(url)
		logger.Info("delivery platform configured", "platform", p.Label(), "url", url)
	}
	return clients
}
