package main

import (
	"fmt"

	"github.com/brainbuzz/brainbuzz/go/clients/chatrelay"
	"github.com/brainbuzz/brainbuzz/go/clients/quizengine"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/events"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/gateway"
	"github.com/brainbuzz/brainbuzz/go/internal/quiz/repository"
)

type Services struct {
	App       *quiz.App
	Service   *quiz.Service
	ConnMgr   *gateway.ConnectionManager
	WSHandler *gateway.WebSocketHandler
	Consumer  *gateway.EventConsumer
	Publisher *events.JetStreamPublisher
}

func setupServices(cfg Config, catalog []quiz.CatalogEntry) (*Services, error) {
	// Wire up dependency injection chain
	// Store → Coordinator → Service layer, with the gateway fed off the bus
	repo := repository.NewRepository(cfg.SingleSessionPerScope)
	engine := quizengine.NewClient(cfg.QuizEngineURL)
	notifier := chatrelay.NewClient(cfg.ChatRelayURL, cfg.ChatRelayToken)

	var publisher events.Publisher = events.NoopPublisher{}
	var jsPublisher *events.JetStreamPublisher
	if cfg.NATSURL != "" {
		pubCfg := events.DefaultJetStreamPublisherConfig()
		pubCfg.URL = cfg.NATSURL
		var err error
		jsPublisher, err = events.NewJetStreamPublisher(pubCfg)
		if err != nil {
			return nil, fmt.Errorf("setup event publisher: %w", err)
		}
		publisher = jsPublisher
	}

	app := quiz.NewApp(repo, engine, notifier, publisher, quiz.AppConfig{
		TickInterval: cfg.TickInterval,
	})
	service := quiz.NewService(app, catalog)

	connMgr := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	wsHandler := gateway.NewWebSocketHandler(connMgr)

	var consumer *gateway.EventConsumer
	if cfg.NATSURL != "" {
		consumerCfg := gateway.DefaultJetStreamConsumerConfig()
		consumerCfg.URL = cfg.NATSURL
		var err error
		consumer, err = gateway.NewEventConsumer(connMgr, consumerCfg)
		if err != nil {
			return nil, fmt.Errorf("setup event consumer: %w", err)
		}
	}

	return &Services{
		App:       app,
		Service:   service,
		ConnMgr:   connMgr,
		WSHandler: wsHandler,
		Consumer:  consumer,
		Publisher: jsPublisher,
	}, nil
}
