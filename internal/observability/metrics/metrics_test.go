package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("event_type", "conversation.started"),
		attribute.String("phone_number", "5551234567"),
		attribute.String("outcome", "ok"),
	)

	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "phone_number" {
			t.Fatalf("phone_number label should have been dropped")
		}
	}
}
