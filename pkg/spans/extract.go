// Span extraction from captured process output
// Recognises stdouttrace, single-line OTLP/JSON and tracecheck artifact lines,
// skipping anything else so debug prints can interleave with span output
package spans

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"time"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	"google.golang.org/protobuf/encoding/protojson"
)

// maxLineSize bounds a single emitted line. Longer lines are skipped unparsed.
const maxLineSize = 10 * 1024 * 1024

// Option configures extraction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger for extraction diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: discardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Extract turns raw captured output into span records in emission order.
// It never fails: lines that are not a recognised span emission are skipped.
func Extract(raw string, opts ...Option) []Record {
	o := newOptions(opts)
	raw = strings.ToValidUTF8(raw, "�")

	records := make([]Record, 0)
	skipped, oversized := 0, 0

	for text := range strings.Lines(raw) {
		if len(text) > maxLineSize {
			oversized++
			continue
		}
		line := bytes.TrimSpace([]byte(text))
		if len(line) == 0 {
			continue
		}
		parsed, ok := parseLine(line)
		if !ok {
			skipped++
			continue
		}
		records = append(records, parsed...)
	}
	if oversized > 0 {
		o.logger.Warn("skipped oversized lines", "lines", oversized, "limit_bytes", maxLineSize)
	}

	// Pretty-printed OTLP documents span many lines; try the whole input once.
	if len(records) == 0 {
		if doc, err := parseOTLP([]byte(raw)); err == nil && len(doc) > 0 {
			o.logger.Debug("extracted spans from multi-line OTLP document", "spans", len(doc))
			return doc
		}
	}

	if skipped > 0 {
		o.logger.Debug("skipped lines without span data", "lines", skipped, "spans", len(records))
	}
	return records
}

// ExtractReader reads all of r and extracts spans from it.
func ExtractReader(r io.Reader, opts ...Option) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}
	return Extract(string(data), opts...), nil
}

// parseLine recognises a single emitted line. The second result is false
// when the line carries no span data in a known shape.
func parseLine(line []byte) ([]Record, bool) {
	if line[0] != '{' {
		return nil, false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(line, &probe); err != nil {
		return nil, false
	}

	switch {
	case has(probe, "SpanContext"):
		r, err := parseStdouttrace(line)
		if err != nil {
			return nil, false
		}
		return []Record{r}, true
	case has(probe, "resourceSpans"):
		rs, err := parseOTLP(line)
		if err != nil || len(rs) == 0 {
			return nil, false
		}
		return rs, true
	case has(probe, "span_id"):
		r, err := parseArtifactLine(line)
		if err != nil {
			return nil, false
		}
		return []Record{r}, true
	default:
		return nil, false
	}
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

// stdouttraceEvent mirrors the Go SDK's stdouttrace JSON output.
type stdouttraceEvent struct {
	Name        string `json:"Name"`
	SpanContext struct {
		TraceID string `json:"TraceID"`
		SpanID  string `json:"SpanID"`
	} `json:"SpanContext"`
	Parent struct {
		TraceID string `json:"TraceID"`
		SpanID  string `json:"SpanID"`
	} `json:"Parent"`
	SpanKind   int       `json:"SpanKind"`
	StartTime  time.Time `json:"StartTime"`
	EndTime    time.Time `json:"EndTime"`
	Attributes []sdkAttr `json:"Attributes"`
	Resource   []sdkAttr `json:"Resource"`
}

type sdkAttr struct {
	Key   string `json:"Key"`
	Value struct {
		Type  string `json:"Type"`
		Value any    `json:"Value"`
	} `json:"Value"`
}

func parseStdouttrace(line []byte) (Record, error) {
	var evt stdouttraceEvent
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&evt); err != nil {
		return Record{}, err
	}
	if evt.SpanContext.SpanID == "" && evt.Name == "" {
		return Record{}, fmt.Errorf("stdouttrace line has neither span id nor name")
	}

	// All-zeros parent means root span
	parentID := evt.Parent.SpanID
	if isZeroID(parentID) {
		parentID = ""
	}

	return Record{
		TraceID:    evt.SpanContext.TraceID,
		ID:         evt.SpanContext.SpanID,
		ParentID:   parentID,
		Name:       evt.Name,
		Kind:       normKind(evt.SpanKind),
		StartTime:  normTime(evt.StartTime),
		EndTime:    normTime(evt.EndTime),
		Attributes: flattenSDKAttrs(evt.Attributes),
		Resource:   flattenSDKAttrs(evt.Resource),
	}, nil
}

func flattenSDKAttrs(attrs []sdkAttr) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[a.Key] = fmt.Sprint(a.Value.Value)
	}
	return out
}

func parseOTLP(data []byte) ([]Record, error) {
	var req coltracepb.ExportTraceServiceRequest
	opts := protojson.UnmarshalOptions{DiscardUnknown: true}
	if err := opts.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parsing OTLP: %w", err)
	}

	var records []Record
	for _, rs := range req.ResourceSpans {
		resource := flattenOTLPAttrs(rs.GetResource().GetAttributes())
		for _, ss := range rs.ScopeSpans {
			for _, span := range ss.Spans {
				parentID := hex.EncodeToString(span.ParentSpanId)
				if isZeroID(parentID) {
					parentID = ""
				}
				records = append(records, Record{
					TraceID:    hex.EncodeToString(span.TraceId),
					ID:         hex.EncodeToString(span.SpanId),
					ParentID:   parentID,
					Name:       span.Name,
					Kind:       normKind(int(span.Kind)),
					StartTime:  fromUnixNano(int64(span.StartTimeUnixNano)), //nolint:gosec // nanosecond timestamps are always positive
					EndTime:    fromUnixNano(int64(span.EndTimeUnixNano)),   //nolint:gosec // nanosecond timestamps are always positive
					Attributes: flattenOTLPAttrs(span.Attributes),
					Resource:   maps.Clone(resource),
				})
			}
		}
	}
	return records, nil
}

func flattenOTLPAttrs(attrs []*commonpb.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		out[kv.GetKey()] = anyValueString(kv.GetValue())
	}
	return out
}

// anyValueString renders an OTLP AnyValue the way fmt.Sprint renders the
// equivalent stdouttrace value, so both formats compare alike.
func anyValueString(v *commonpb.AnyValue) string {
	switch x := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return x.StringValue
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(x.BoolValue)
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(x.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(x.DoubleValue, 'g', -1, 64)
	case *commonpb.AnyValue_BytesValue:
		return hex.EncodeToString(x.BytesValue)
	case *commonpb.AnyValue_ArrayValue:
		parts := make([]string, 0, len(x.ArrayValue.GetValues()))
		for _, el := range x.ArrayValue.GetValues() {
			parts = append(parts, anyValueString(el))
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *commonpb.AnyValue_KvlistValue:
		parts := make([]string, 0, len(x.KvlistValue.GetValues()))
		for _, kv := range x.KvlistValue.GetValues() {
			parts = append(parts, kv.GetKey()+":"+anyValueString(kv.GetValue()))
		}
		return "map[" + strings.Join(parts, " ") + "]"
	default:
		return ""
	}
}
