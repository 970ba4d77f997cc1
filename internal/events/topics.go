package events

import "slices"

// Topics emitted by the order flow.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicInventoryHoldFail  = "inventory.hold_failed"
)

var knownTopics = []string{
	TopicOrderCreated,
	TopicOrderStatusChanged,
	TopicInventoryHoldFail,
}

// KnownTopic reports whether topic is one the bus accepts.
func KnownTopic(topic string) bool {
	return slices.Contains(knownTopics, topic)
}
