// Artifact serialisation of span records as JSON lines
// Output re-extracts to an equal record set, so persisted evidence can be re-validated
package spans

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// artifactSpan is the persisted form of a Record. Timestamps are pointers so
// that an emitted epoch instant stays distinct from a missing one.
type artifactSpan struct {
	TraceID           string            `json:"trace_id,omitempty"`
	SpanID            string            `json:"span_id"`
	ParentSpanID      string            `json:"parent_span_id,omitempty"`
	Name              string            `json:"name"`
	Kind              *string           `json:"kind"`
	StartTimeUnixNano *int64            `json:"start_time_unix_nano,omitempty"`
	EndTimeUnixNano   *int64            `json:"end_time_unix_nano,omitempty"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	Resource          map[string]string `json:"resource,omitempty"`
}

// errNotArtifact marks JSON lines that only resemble a span, such as
// structured log lines carrying trace context.
var errNotArtifact = errors.New("not an artifact span")

// MarshalArtifact encodes records as one JSON object per line, in order.
func MarshalArtifact(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, r := range records {
		kind := r.Kind.String()
		a := artifactSpan{
			TraceID:           r.TraceID,
			SpanID:            r.ID,
			ParentSpanID:      r.ParentID,
			Name:              r.Name,
			Kind:              &kind,
			StartTimeUnixNano: artifactTime(r.StartTime),
			EndTimeUnixNano:   artifactTime(r.EndTime),
			Attributes:        r.Attributes,
			Resource:          r.Resource,
		}
		if err := enc.Encode(a); err != nil {
			return nil, fmt.Errorf("encoding span %d (%s): %w", i, r.ID, err)
		}
	}
	return buf.Bytes(), nil
}

// parseArtifactLine accepts a line only in the shape MarshalArtifact writes:
// a span id, a non-blank name and an explicit kind.
func parseArtifactLine(line []byte) (Record, error) {
	var a artifactSpan
	if err := json.Unmarshal(line, &a); err != nil {
		return Record{}, err
	}
	if a.SpanID == "" || strings.TrimSpace(a.Name) == "" || a.Kind == nil {
		return Record{}, errNotArtifact
	}
	kind, err := ParseKind(*a.Kind)
	if err != nil {
		return Record{}, err
	}
	if a.Attributes == nil {
		a.Attributes = make(map[string]string)
	}
	if a.Resource == nil {
		a.Resource = make(map[string]string)
	}
	return Record{
		TraceID:    a.TraceID,
		ID:         a.SpanID,
		ParentID:   a.ParentSpanID,
		Name:       a.Name,
		Kind:       kind,
		StartTime:  recordTime(a.StartTimeUnixNano),
		EndTime:    recordTime(a.EndTimeUnixNano),
		Attributes: a.Attributes,
		Resource:   a.Resource,
	}, nil
}

func artifactTime(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ns := t.UnixNano()
	return &ns
}

func recordTime(ns *int64) time.Time {
	if ns == nil {
		return time.Time{}
	}
	return time.Unix(0, *ns).UTC()
}
