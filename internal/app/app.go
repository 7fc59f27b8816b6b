package app

import (
	"context"
	"os"

	commonHTTP "github.com/ThreeDotsLabs/go-event-driven/common/http"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	wmessage "github.com/ThreeDotsLabs/watermill/message"
	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	trmanager "github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bookings/internal/application/timeouts"
	"bookings/internal/application/usecases/booking"
	"bookings/internal/config"
	"bookings/internal/deadletter"
	"bookings/internal/infrastructure/clients"
	"bookings/internal/infrastructure/event_publisher"
	"bookings/internal/interfaces/http"
	"bookings/internal/interfaces/message"
	"bookings/internal/interfaces/message/commands"
	"bookings/internal/interfaces/message/events"
	"bookings/internal/outbox"
	"bookings/internal/repository"
)

type App struct {
	watermillLogger watermill.LoggerAdapter
	logger          zerolog.Logger
	router          *wmessage.Router
	srv             *http.Server
	forwarder       *outbox.Forwarder
	watchdog        *timeouts.Watchdog
	db              *sqlx.DB
}

func NewApp(
	watermillLogger watermill.LoggerAdapter,
	cfg config.Config,
	redisClient *redis.Client,
	db *sqlx.DB,
) (*App, error) {
	logger := zerolog.New(os.Stdout)

	trManager := trmanager.Must(trmsqlx.NewDefaultFactory(db))
	trGetter := trmsqlx.DefaultCtxGetter

	bookingsRepo := repository.NewBookingsRepo(db, trGetter)
	idempotencyStore := repository.NewIdempotencyStore(db, trGetter, cfg.IdempotencyTTL)
	quotesRepo := repository.NewQuotesRepo(redisClient)

	var publisher wmessage.Publisher
	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: redisClient,
	}, watermillLogger)
	if err != nil {
		return nil, err
	}
	publisher = event_publisher.CorrelationPublisherDecorator{
		Publisher: publisher,
	}

	eventBus, err := events.NewEventBus(publisher, watermillLogger)
	if err != nil {
		return nil, err
	}

	outboxEventBus := events.NewOutboxEventBus(trGetter, watermillLogger)
	outboxCommandBus := commands.NewOutboxCommandBus(trGetter, watermillLogger)

	inventoryClient := clients.NewInventoryClient(cfg.InventoryAddr, cfg.CollaboratorTimeout)
	paymentsClient := clients.NewPaymentsClient(cfg.PaymentsAddr, cfg.CollaboratorTimeout)
	notificationsClient := clients.NewNotificationsClient(cfg.NotificationsAddr, cfg.CollaboratorTimeout)

	saga := events.NewBookingSagaProcessManager(
		eventBus,
		bookingsRepo,
		idempotencyStore,
		trManager,
		outboxEventBus,
		outboxCommandBus,
	)
	notificationsHandler := events.NewNotificationsHandler(notificationsClient)
	commandsHandler := commands.NewHandler(eventBus, inventoryClient, paymentsClient, quotesRepo)

	splitterSubscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        redisClient,
		ConsumerGroup: "svc-bookings.events-splitter",
	}, watermillLogger)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(
		watermillLogger,
		splitterSubscriber,
		publisher,
		commandsHandler,
		saga,
		notificationsHandler,
		events.Marshaler(),
		events.NewEventProcessorConfig(redisClient, watermillLogger),
		commands.NewCommandProcessorConfig(redisClient, watermillLogger),
		cfg.MessageMaxRetries,
	)
	if err != nil {
		return nil, err
	}

	forwarder, err := outbox.NewForwarder(db, redisClient, cfg.OutboxPollInterval, watermillLogger)
	if err != nil {
		return nil, err
	}

	watchdog := timeouts.NewWatchdog(
		bookingsRepo,
		eventBus,
		cfg.HoldDeadline,
		cfg.PaymentDeadline,
		cfg.WatchdogInterval,
		logger,
	)

	bookingsService := booking.NewCreateBookingUsecase(
		bookingsRepo,
		quotesRepo,
		idempotencyStore,
		trManager,
		outboxEventBus,
	)

	e := commonHTTP.NewEcho()
	srv := http.NewServer(
		e,
		bookingsService,
		bookingsRepo,
		quotesRepo,
		deadletter.NewQueue(redisClient, watermillLogger),
		router.IsRunning,
	)

	return &App{
		watermillLogger: watermillLogger,
		logger:          logger,
		router:          router,
		srv:             srv,
		forwarder:       forwarder,
		watchdog:        watchdog,
		db:              db,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := repository.InitializeDBSchema(a.db)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info().Msg("starting router")

		return a.router.Run(ctx)
	})

	g.Go(func() error {
		<-a.router.Running()
		a.logger.Info().Msg("router is running")

		a.logger.Info().Msg("starting outbox forwarder")
		a.forwarder.RunForwarder(ctx)

		a.logger.Info().Msg("starting server")
		return a.srv.Start()
	})

	g.Go(func() error {
		<-a.router.Running()

		a.logger.Info().Msg("starting timeout watchdog")
		return a.watchdog.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()

		err := a.srv.Stop(ctx)
		if err != nil {
			a.logger.Err(err).Msg("error stopping server")
		}

		return err
	})

	return g.Wait()
}
