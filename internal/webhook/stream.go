package webhook

// Stream/consumer naming for the webhook delivery pipeline.
const (
	StreamName     = "WEBHOOK_DELIVERIES"
	StreamSubject  = "webhooks.deliveries"
	ConsumerName   = "webhook-delivery-worker"
	StreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
