package rabbitmq

// QueueConfig связка очереди и ключа маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации напоминаний.
const (
	RoutingSubscriptionExpiring = "subscription.expiring"
	RoutingSubscriptionExpired  = "subscription.expired"
)

// GetReminderQueues очереди, которые читает сервис рассылки напоминаний.
func GetReminderQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "reminders.expiring", RoutingKey: RoutingSubscriptionExpiring},
		{QueueName: "reminders.expired", RoutingKey: RoutingSubscriptionExpired},
	}
}
