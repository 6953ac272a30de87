package webhook

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestDeathCountReadsMainQueueEntry(t *testing.T) {
	headers := amqp.Table{
		"x-death": []any{
			amqp.Table{"queue": "webhook_deliveries.retry", "count": int64(3)},
			amqp.Table{"queue": "webhook_deliveries", "count": int64(3)},
		},
	}
	if got := DeathCount(headers, "webhook_deliveries"); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	if got := DeathCount(headers, "other_queue"); got != 0 {
		t.Fatalf("count for unrelated queue = %d, want 0", got)
	}
}

func TestDeathCountFreshDelivery(t *testing.T) {
	if got := DeathCount(nil, "webhook_deliveries"); got != 0 {
		t.Fatalf("count without headers = %d, want 0", got)
	}
	if got := DeathCount(amqp.Table{}, "webhook_deliveries"); got != 0 {
		t.Fatalf("count without x-death = %d, want 0", got)
	}
}

func TestDeathCountToleratesHeaderShapes(t *testing.T) {
	// brokers have shipped the count as different integer widths
	for _, c := range []any{int64(5), int32(5), int(5)} {
		headers := amqp.Table{
			"x-death": []any{amqp.Table{"queue": "q", "count": c}},
		}
		if got := DeathCount(headers, "q"); got != 5 {
			t.Fatalf("count(%T) = %d, want 5", c, got)
		}
	}
	// malformed entries are skipped, not fatal
	headers := amqp.Table{"x-death": []any{"garbage", amqp.Table{"queue": "q", "count": "NaN"}}}
	if got := DeathCount(headers, "q"); got != 0 {
		t.Fatalf("count from malformed entries = %d, want 0", got)
	}
}
