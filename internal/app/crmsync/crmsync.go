// Package crmsync запускает воркер, который переносит новые покупки в CRM.
package crmsync

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/worksmart-portal/internal/config"
	"github.com/magabrotheeeer/worksmart-portal/internal/crm"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	crmsyncservice "github.com/magabrotheeeer/worksmart-portal/internal/services/crmsync"
)

type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *crmsyncservice.Service
	logger  *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.EntitlementsExchange, rabbitmq.GetCRMQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	var tagger crmsyncservice.Tagger
	if cfg.CRMEnabled() {
		tagger = crm.NewClient(cfg.CRM)
	} else {
		logger.Warn("crm credentials are not set, messages will be acknowledged without sync")
	}

	return &App{
		conn:    conn,
		ch:      ch,
		service: crmsyncservice.New(tagger, logger),
		logger:  logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.QueueCRMEntitlementGranted, a.service.HandleEntitlementGranted)
	if err != nil {
		a.logger.Error("failed to start crm consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("crm sync shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return nil
}
