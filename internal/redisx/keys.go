package redisx

import "time"

const (
	// Per-order webhook mutex: lock:webhook:{order_id} -> token
	KeyWebhookLock = "lock:webhook:%s"

	// Dedup of processed events: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLWebhookLock = 30 * time.Second
	TTLDedup       = 48 * time.Hour
)
