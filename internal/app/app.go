package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"yalegn/orders-service/internal/chat"
	"yalegn/orders-service/internal/config"
	"yalegn/orders-service/internal/httpapi"
	"yalegn/orders-service/internal/listing"
	"yalegn/orders-service/internal/messaging"
	"yalegn/orders-service/internal/notification"
	"yalegn/orders-service/internal/order"
	"yalegn/orders-service/internal/storage"
	"yalegn/orders-service/internal/websocket"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	orderSvc  *order.Service
	wsHub     *websocket.Hub
	publisher messaging.Publisher
	outbox    *messaging.OutboxDispatcher
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	wsHub := websocket.NewHub()

	listings := listing.NewService(store.Pool())
	notifier := notification.NewEmitter(store.Pool(), logger)
	orderStore := order.NewPostgresStore(store.Pool())
	orderSvc := order.NewService(orderStore, listings, notifier, wsHub, logger)
	chatSvc := chat.NewService(store.Pool())

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.OrdersExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	api := httpapi.NewServer(orderSvc, logger)

	orderWS := websocket.NewHandler(wsHub, orderSvc, logger)
	api.HandleFunc("GET /orders/{orderID}/ws", orderWS.ServeWS)

	chatHandler := chat.NewHandler(wsHub, chatSvc, logger)
	api.HandleFunc("GET /conversations/{conversationID}/ws", chatHandler.ServeWS)
	api.HandleFunc("GET /conversations/{conversationID}/messages", chatHandler.ServeHistory)

	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	outbox := messaging.NewOutboxDispatcher(store.Pool(), publisher, cfg.OutboxInterval, cfg.OutboxBatchSize, logger)

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		orderSvc:  orderSvc,
		wsHub:     wsHub,
		publisher: publisher,
		outbox:    outbox,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)

	a.outbox.Start(ctx)

	go a.wsHub.Run(ctx)

	go func() {
		a.logger.Info("orders http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (a *App) Close(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownGracePeriod)
	defer cancel()
	_ = a.httpSrv.Shutdown(shutdownCtx)
	a.publisher.Close()
	a.store.Close()
}

func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close(ctx)

	return app.Run(ctx)
}
