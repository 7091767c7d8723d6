package kafka

// Topics для Kafka
const (
	TopicOrderEvents     = "ordering.order.events"
	TopicDeadLetterQueue = "ordering.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderOriginalTopic = "x-original-topic"
	HeaderFailedAt      = "x-failed-at"
)
