// Format-independent span record shared by the extractor, normalizer and validators
// Timestamps use the zero time.Time to mean "not emitted"
package spans

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Record is a single span materialised from a capture.
type Record struct {
	TraceID    string
	ID         string
	ParentID   string // empty for root spans; may reference an id outside the capture
	Name       string
	Kind       trace.SpanKind
	StartTime  time.Time // zero when missing
	EndTime    time.Time // zero when missing
	Attributes map[string]string
	Resource   map[string]string
}

// HasStart reports whether the span carries a start timestamp.
func (r Record) HasStart() bool { return !r.StartTime.IsZero() }

// HasEnd reports whether the span carries an end timestamp.
func (r Record) HasEnd() bool { return !r.EndTime.IsZero() }

// HasTiming reports whether both timestamps are present.
func (r Record) HasTiming() bool { return r.HasStart() && r.HasEnd() }

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Attributes = maps.Clone(r.Attributes)
	r.Resource = maps.Clone(r.Resource)
	return r
}

// String is a compact label for messages and warnings.
func (r Record) String() string {
	return fmt.Sprintf("%s (id %s)", r.Name, r.ID)
}

// normKind maps a wire kind onto the OTel enum. Unspecified and unknown
// values are treated as internal, matching the SDK default.
func normKind(k int) trace.SpanKind {
	kind := trace.SpanKind(k)
	if kind < trace.SpanKindInternal || kind > trace.SpanKindConsumer {
		return trace.SpanKindInternal
	}
	return kind
}

// ParseKind parses a span kind name such as "server" or "SPAN_KIND_CLIENT".
func ParseKind(s string) (trace.SpanKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "span_kind_")
	switch s {
	case "", "internal", "unspecified":
		return trace.SpanKindInternal, nil
	case "server":
		return trace.SpanKindServer, nil
	case "client":
		return trace.SpanKindClient, nil
	case "producer":
		return trace.SpanKindProducer, nil
	case "consumer":
		return trace.SpanKindConsumer, nil
	default:
		return trace.SpanKindInternal, fmt.Errorf("unknown span kind %q, valid kinds: internal, server, client, producer, consumer", s)
	}
}

// normTime drops location and monotonic readings so equal instants compare
// equal after a round trip. The zero time stays zero.
func normTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Unix(0, t.UnixNano()).UTC()
}

// fromUnixNano converts an OTLP nanosecond timestamp. Proto3 cannot tell an
// unset field from 0, so 0 means missing.
func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

// isZeroID checks if a hex-encoded ID is all zeros.
func isZeroID(id string) bool {
	for _, c := range id {
		if c != '0' {
			return false
		}
	}
	return len(id) > 0
}

// MergeResource returns the capture-wide resource attributes: the union of
// every record's resource map, later records winning on conflicting keys.
func MergeResource(records []Record) map[string]string {
	merged := make(map[string]string)
	for _, r := range records {
		maps.Copy(merged, r.Resource)
	}
	return merged
}
