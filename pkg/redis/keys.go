package redis

import "strings"

// DefaultKeyPrefix namespaces keys when no prefix is configured.
const DefaultKeyPrefix = "vv"

// Keyspace builds every key the POS writes, under one prefix, so one Redis
// can serve several environments.
type Keyspace string

func (k Keyspace) key(kind string, parts ...string) string {
	prefix := strings.TrimSpace(string(k))
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}

// IdempotencyKey holds a replayable response or a processed-event marker.
func (k Keyspace) IdempotencyKey(scope, id string) string {
	return k.key("idempotency", scope, id)
}

// RateLimitKey holds a fixed-window counter.
func (k Keyspace) RateLimitKey(scope string) string { return k.key("rate_limit", scope) }

// AccessSessionKey maps an access token id to its session.
func (k Keyspace) AccessSessionKey(accessID string) string {
	return k.key("session", "access", accessID)
}

// TransactionKey is where a cashier's open register transaction lives.
func (k Keyspace) TransactionKey(cashierID string) string { return k.key("txn", cashierID) }

func (k Keyspace) LockKey(name string) string { return k.key("lock", name) }

// StockAlertKey marks a low-stock alert as raised for a product on a day.
func (k Keyspace) StockAlertKey(productID, day string) string {
	return k.key("stock_alert", day, productID)
}
