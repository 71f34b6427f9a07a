// Hermeticity validator for external calls, resource attributes and forbidden keys
// Destinations are read from OpenTelemetry semantic-convention attributes
package expect

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"slices"
	"strings"

	"github.com/andrewh/tracecheck/pkg/spans"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// ExternalMarkerKey forces a span to count as an external call when its
// value is "true", whatever its kind.
const ExternalMarkerKey = "tracecheck.external"

// destinationKeys are read in order; the first present one names where an
// outbound span went. Legacy keys cover older instrumentation.
var destinationKeys = []string{
	string(semconv.ServerAddressKey),
	string(semconv.NetworkPeerAddressKey),
	"net.peer.name",
	string(semconv.PeerServiceKey),
}

// urlKeys hold full URLs whose host is the destination.
var urlKeys = []string{
	string(semconv.URLFullKey),
	"http.url",
}

// inTestSuffixes are DNS suffixes that never leave an isolated network.
var inTestSuffixes = []string{".local", ".internal", ".localhost"}

func checkHermeticity(idx *spans.Index, h *HermeticityExpectation) []CheckResult {
	var results []CheckResult
	if h.NoExternalServices {
		results = append(results, checkNoExternal(idx, h.AllowedHosts))
	}
	if len(h.ResourceAttrsMustMatch) > 0 {
		results = append(results, checkResourceAttrs(idx, h.ResourceAttrsMustMatch))
	}
	if len(h.SpanAttrsForbidKeys) > 0 {
		results = append(results, checkForbiddenKeys(idx, h.SpanAttrsForbidKeys))
	}
	return results
}

func checkNoExternal(idx *spans.Index, allowed []string) CheckResult {
	const name = "hermeticity.no_external_services"
	count := 0
	first := ""
	for _, r := range idx.Records() {
		dest, external := ExternalDestination(r, allowed)
		if !external {
			continue
		}
		count++
		if first == "" {
			first = fmt.Sprintf("%s calls %s", r, dest)
		}
	}
	if count > 0 {
		return fail(name, "%d span(s) reach outside the test network; first: %s", count, first)
	}
	return pass(name, "no external calls in %d span(s)", idx.Len())
}

// ExternalDestination reports whether r is an outbound call to a host not
// allowed inside the test network, and names that host.
//
// A span is outbound when its kind is client or producer. Its destination
// is the first of server.address, network.peer.address, net.peer.name and
// peer.service, else the host of url.full or http.url. Destinations that
// are localhost, loopback IPs, end in .local/.internal/.localhost, or match
// allowed stay inside. An allowed entry is an exact host, a "*.suffix"
// pattern or a CIDR prefix such as 172.16.0.0/12 matching IP destinations.
// Private-range IPs and single-label names (a compose service such as
// "postgres", a peer.service value) are external unless allowed lists them.
// An outbound span with no destination attribute is not external. A span
// with tracecheck.external=true is always external.
func ExternalDestination(r spans.Record, allowed []string) (string, bool) {
	if strings.EqualFold(r.Attributes[ExternalMarkerKey], "true") {
		dest := destination(r)
		if dest == "" {
			dest = ExternalMarkerKey
		}
		return dest, true
	}
	if r.Kind != trace.SpanKindClient && r.Kind != trace.SpanKindProducer {
		return "", false
	}
	dest := destination(r)
	if dest == "" || hostAllowed(dest, allowed) {
		return "", false
	}
	return dest, true
}

func destination(r spans.Record) string {
	for _, k := range destinationKeys {
		if v := strings.TrimSpace(r.Attributes[k]); v != "" {
			return v
		}
	}
	for _, k := range urlKeys {
		v := strings.TrimSpace(r.Attributes[k])
		if v == "" {
			continue
		}
		if u, err := url.Parse(v); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	return ""
}

func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	addr, addrErr := netip.ParseAddr(host)
	addr = addr.Unmap()
	if host == "localhost" || (addrErr == nil && addr.IsLoopback()) {
		return true
	}
	for _, suffix := range inTestSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return slices.ContainsFunc(allowed, func(pattern string) bool {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if prefix, err := netip.ParsePrefix(pattern); err == nil {
			return addrErr == nil && prefix.Contains(addr)
		}
		if suffix, ok := strings.CutPrefix(pattern, "*"); ok {
			return strings.HasSuffix(host, suffix)
		}
		return host == pattern
	})
}

func checkResourceAttrs(idx *spans.Index, want map[string]string) CheckResult {
	const name = "hermeticity.resource_attrs.must_match"
	got := spans.MergeResource(idx.Records())

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var problems []string
	for _, k := range keys {
		v, ok := got[k]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s missing (want %q)", k, want[k]))
		case v != want[k]:
			problems = append(problems, fmt.Sprintf("%s = %q, want %q", k, v, want[k]))
		}
	}
	if len(problems) > 0 {
		return fail(name, "resource attributes differ: %s", strings.Join(problems, "; "))
	}
	return pass(name, "all %d resource attribute(s) match", len(want))
}

// checkForbiddenKeys fails if any span carries any forbidden key.
func checkForbiddenKeys(idx *spans.Index, forbidden []string) CheckResult {
	const name = "hermeticity.span_attrs.forbid_keys"
	violations := 0
	first := ""
	for _, r := range idx.Records() {
		for _, k := range forbidden {
			if _, ok := r.Attributes[k]; !ok {
				continue
			}
			violations++
			if first == "" {
				first = fmt.Sprintf("%s carries %q", r, k)
			}
		}
	}
	if violations > 0 {
		return fail(name, "%d forbidden attribute(s) found; first: %s", violations, first)
	}
	return pass(name, "no span carries any of %s", strings.Join(forbidden, ", "))
}
