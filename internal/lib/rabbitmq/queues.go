package rabbitmq

const (
	// EntitlementsExchange обменник событий о правах доступа
	EntitlementsExchange = "entitlements"
	// RoutingKeyEntitlementGranted ключ события о новой покупке
	RoutingKeyEntitlementGranted = "entitlement.granted"
	// QueueCRMEntitlementGranted очередь воркера синхронизации с CRM
	QueueCRMEntitlementGranted = "crm.entitlement_granted"
)

// QueueConfig описывает очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetCRMQueues возвращает очереди, которые слушает воркер CRM.
func GetCRMQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueCRMEntitlementGranted, RoutingKey: RoutingKeyEntitlementGranted},
	}
}
