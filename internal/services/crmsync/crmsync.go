// Package crmsync переносит события о новых покупках в CRM.
//
// Синхронизация не влияет на права доступа: любые ошибки логируются,
// а сообщение подтверждается.
package crmsync

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/magabrotheeeer/worksmart-portal/internal/lib/sl"
	"github.com/magabrotheeeer/worksmart-portal/internal/models"
)

// Tagger помечает контакт в CRM.
type Tagger interface {
	TagContact(ctx context.Context, ev models.EntitlementGranted) error
}

// Service обрабатывает сообщения entitlement.granted.
type Service struct {
	crm Tagger
	log *slog.Logger
}

// New создаёт Service. Nil crm означает, что реквизиты CRM не заданы.
func New(crm Tagger, log *slog.Logger) *Service {
	return &Service{crm: crm, log: log}
}

// HandleEntitlementGranted разбирает сообщение и передаёт его в CRM.
// Всегда возвращает nil, чтобы сообщение не возвращалось в очередь.
func (s *Service) HandleEntitlementGranted(ctx context.Context, body []byte) error {
	const op = "crmsync.HandleEntitlementGranted"
	log := s.log.With(slog.String("op", op))

	var ev models.EntitlementGranted
	if err := json.Unmarshal(body, &ev); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return nil
	}
	log = log.With(sl.Account(ev.AccountID), sl.Product(ev.ProductType))

	if s.crm == nil {
		log.Warn("crm credentials are not set, skipping")
		return nil
	}
	if err := s.crm.TagContact(ctx, ev); err != nil {
		log.Error("failed to tag crm contact", sl.Err(err))
		return nil
	}
	log.Info("crm contact tagged")
	return nil
}
