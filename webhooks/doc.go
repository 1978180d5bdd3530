// Package webhooks verifies, classifies and dispatches inbound Twilio
// webhooks.
//
// A request passes through three stages: signature verification against the
// account auth token, classification of the decoded payload into an event
// type, and synchronous fan-out to subscribers in registration order.
//
// Provider retries can be deduplicated with a DeliveryLedger keyed on the
// I-Twilio-Idempotency-Token header. Deliveries follow a claim lifecycle:
// pending/retry_ready -> processing -> processed|dead.
package webhooks
