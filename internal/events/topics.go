package events

// Topic constants for checkout outcome events.
const (
	TopicCheckoutCompleted = "checkout.completed"
	TopicCheckoutCancelled = "checkout.cancelled"
	TopicPaymentFailed     = "checkout.payment_failed"
	TopicPaymentAmbiguous  = "checkout.payment_ambiguous"
)

// DefaultTopics returns every topic the checkout emits.
func DefaultTopics() []string {
	return []string{
		TopicCheckoutCompleted,
		TopicCheckoutCancelled,
		TopicPaymentFailed,
		TopicPaymentAmbiguous,
	}
}

// TopicFilter wraps n so it only sees the listed topics.
func TopicFilter(n Notifier, topics ...string) Notifier {
	allowed := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		allowed[t] = struct{}{}
	}
	return filtered{next: n, allowed: allowed}
}
