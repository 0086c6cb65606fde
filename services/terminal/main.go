package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/middleware"
	"github.com/google/uuid"

	"github.com/appetiteclub/pos/services/terminal/internal/backend"
	"github.com/appetiteclub/pos/services/terminal/internal/kitchenstream"
	"github.com/appetiteclub/pos/services/terminal/internal/notify"
	"github.com/appetiteclub/pos/services/terminal/internal/terminal"
)

const (
	appNamespace = "TERMINAL"
	appName      = "terminal"
	appVersion   = "0.1.0"
)

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
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

	posURL := config.GetStringOrDef("services.pos.url", "http://localhost:8090")
	wsURL := config.GetStringOrDef("services.pos.ws_url", "ws://localhost:8090/ws/kitchen")
	token, _ := config.GetString("auth.token")
	origin := config.GetStringOrDef("terminal.id", appName+"-"+uuid.NewString())

	client := backend.NewClient(posURL, token, durationOr(config, "services.pos.timeout", backend.DefaultTimeout))
	tablesDA := backend.NewTableDataAccess(client)
	ordersDA := backend.NewOrderDataAccess(client)
	deliveryDA := backend.NewDeliveryDataAccess(client)

	store := terminal.NewStore(terminal.State{})
	broker := terminal.NewBroker(logger)
	desktop := notify.NewDesktop(broker)
	notifier := notify.NewDispatcher(logger, notify.DefaultTimeout,
		notify.NewChime(notify.NewSinkPlayer(broker)),
		desktop,
		notify.NewToast(store),
	)

	channel := kitchenstream.NewChannel(kitchenstream.Options{
		URL:               wsURL,
		Token:             token,
		Origin:            origin,
		ReconnectInterval: durationOr(config, "sync.reconnect.interval", kitchenstream.DefaultReconnectInterval),
		MaxAttempts:       intOr(config, "sync.reconnect.attempts", kitchenstream.DefaultMaxAttempts),
	}, nil, logger)

	term := terminal.New(terminal.Deps{
		Store:       store,
		Floor:       tablesDA,
		Orders:      ordersDA,
		TablesAPI:   tablesDA,
		OrdersAPI:   ordersDA,
		DeliveryAPI: deliveryDA,
		Publisher:   channel,
		Notifier:    notifier,
		Permissions: desktop,
		Origin:      origin,
		Logger:      logger,
	})
	channel.SetHandler(term)

	scheduler := terminal.NewScheduler(logger,
		terminal.Task{
			Name:     terminal.DomainFloor,
			Interval: durationOr(config, "poll.floor.interval", 5*time.Second),
			Run:      term.ReloadFloor,
		},
		terminal.Task{
			Name:     terminal.DomainDelivery,
			Interval: durationOr(config, "poll.delivery.interval", 15*time.Second),
			Run:      term.ReloadDelivery,
		},
		terminal.Task{
			Name:     terminal.DomainKitchen,
			Interval: durationOr(config, "poll.kitchen.interval", 10*time.Second),
			Run:      term.ReloadKitchen,
		},
	)
	term.SetReloader(scheduler)

	handler := terminal.NewHandler(term, broker, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: false,
	})

	lifecycles := []interface{}{channel, scheduler}

	options := []aqm.Option{
		aqm.WithConfig(config),
		aqm.WithLogger(logger),
		aqm.WithHTTPMiddleware(stack...),
		aqm.WithHTTPServerModules("web.port", handler),
		aqm.WithLifecycle(lifecycles...),
		aqm.WithHealthChecks(appName),
	}

	ms := aqm.NewMicro(options...)
	logger.Infof("Starting %s(%s) as %s", appName, appVersion, origin)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	notifier.Wait()
	logger.Infof("%s(%s) stopped", appName, appVersion)
}

func durationOr(config *aqm.Config, key string, def time.Duration) time.Duration {
	raw, ok := config.GetString(key)
	if !ok || raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func intOr(config *aqm.Config, key string, def int) int {
	raw, ok := config.GetString(key)
	if !ok || raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
