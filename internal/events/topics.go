package events

// Topic constants for domain events emitted by the API.
const (
	TopicSaleCreated       = "sale.created"
	TopicSaleUpdated       = "sale.updated"
	TopicSaleStatusChanged = "sale.status_changed"
	TopicSaleDeleted       = "sale.deleted"
	TopicProductUpdated    = "product.updated"
	TopicProductDeleted    = "product.deleted"
)

// SaleTopics returns the topics that change sale aggregates.
func SaleTopics() []string {
	return []string{
		TopicSaleCreated,
		TopicSaleUpdated,
		TopicSaleStatusChanged,
		TopicSaleDeleted,
	}
}

// IsSaleTopic reports whether topic belongs to SaleTopics.
func IsSaleTopic(topic string) bool {
	for _, t := range SaleTopics() {
		if t == topic {
			return true
		}
	}
	return false
}
