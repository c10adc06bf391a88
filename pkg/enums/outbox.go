package enums

// OutboxAggregateType is the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateSale    OutboxAggregateType = "sale"
	AggregateProduct OutboxAggregateType = "product"
)

var aggregateTypes = set[OutboxAggregateType]{AggregateSale, AggregateProduct}

func (a OutboxAggregateType) IsValid() bool { return aggregateTypes.has(a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return aggregateTypes.parse("aggregate type", value)
}

// OutboxEventType is the event_type column of outbox_events and the
// event_type attribute on published messages.
type OutboxEventType string

const (
	EventSaleCompleted OutboxEventType = "sale.completed"
	EventSaleVoided    OutboxEventType = "sale.voided"
	EventStockLow      OutboxEventType = "stock.low"
)

var eventTypes = set[OutboxEventType]{EventSaleCompleted, EventSaleVoided, EventStockLow}

func (e OutboxEventType) IsValid() bool { return eventTypes.has(e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return eventTypes.parse("event type", value)
}

// OutboxDLQErrorReason records why the relay gave up on a row.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
	OutboxDLQReasonUnknownEvent OutboxDLQErrorReason = "unknown_event"
)

var dlqReasons = set[OutboxDLQErrorReason]{OutboxDLQReasonMaxAttempts, OutboxDLQReasonNonRetryable, OutboxDLQReasonUnknownEvent}

func (r OutboxDLQErrorReason) IsValid() bool { return dlqReasons.has(r) }
