// Package exchange models one protocol exchange: the immutable invocation
// scope describing the inbound request, the single-shot input event source
// that feeds the runtime, and the output accumulator that collects what the
// runtime emits. Everything in this package is scoped to a single request
// and never shared across requests.
package exchange

import (
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// HeaderPair is one (name, value) header entry in the scope's flattened
// header list. Names are lower-cased; values carry the raw bytes as
// received, so arbitrary header byte sequences round-trip untouched.
type HeaderPair struct {
	Name  []byte
	Value []byte
}

// Addr identifies one side of the exchange.
type Addr struct {
	Host string
	Port int
}

// Scope is the immutable description of one exchange. It is built once per
// request, read by the runtime for the lifetime of the exchange, and
// discarded when the response has been assembled.
type Scope struct {
	// Proto is the protocol identity, always "http".
	Proto string
	// ProtoVersion is the HTTP version the exchange was received over.
	ProtoVersion string
	Method       string
	Scheme       string
	Path         string
	// RawPath is the request path as sent on the wire, UTF-8 encoded.
	RawPath []byte
	// Query is the raw query string, UTF-8 encoded, without the leading "?".
	Query []byte
	// Headers is the flattened header list. See FlattenHeaders for the
	// normalization contract.
	Headers []HeaderPair
	Client  Addr
	Server  Addr
}

// Header returns the value of the first header with the given lower-case
// name, or nil if absent.
func (s *Scope) Header(name string) []byte {
	for _, p := range s.Headers {
		if string(p.Name) == name {
			return p.Value
		}
	}
	return nil
}

// FromRequest builds a Scope from an inbound request. bodyLen is the length
// of the body the bridge buffered up front; the content-length header in the
// scope is recomputed from it rather than trusted from the wire.
func FromRequest(r *http.Request, bodyLen int) *Scope {
	rawPath := r.URL.EscapedPath()
	if rawPath == "" {
		rawPath = r.URL.Path
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	clientHost, clientPort := splitAddr(r.RemoteAddr)
	serverHost, serverPort := splitAddr(r.Host)
	if serverPort == 0 {
		serverPort = 80
	}

	return &Scope{
		Proto:        "http",
		ProtoVersion: protoVersion(r),
		Method:       r.Method,
		Scheme:       scheme,
		Path:         r.URL.Path,
		RawPath:      []byte(rawPath),
		Query:        []byte(r.URL.RawQuery),
		Headers:      FlattenHeaders(r.Header, r.Host, bodyLen),
		Client:       Addr{Host: clientHost, Port: clientPort},
		Server:       Addr{Host: serverHost, Port: serverPort},
	}
}

// FlattenHeaders normalizes Go's canonical header map into the scope's
// ordered byte-pair form. The contract:
//
//   - names are lower-cased,
//   - the inbound content-length entry is dropped and recomputed from
//     bodyLen, since the bridge synthesizes the complete body up front,
//   - the host header is re-included from the request's Host field (Go
//     strips it out of the header map),
//   - values are copied byte-for-byte,
//   - names are sorted because Go's header map has no iteration order;
//     multiple values for one name keep their received order.
func FlattenHeaders(h http.Header, host string, bodyLen int) []HeaderPair {
	names := make([]string, 0, len(h))
	for name := range h {
		if strings.EqualFold(name, "Content-Length") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]HeaderPair, 0, len(h)+2)
	if host != "" {
		pairs = append(pairs, HeaderPair{Name: []byte("host"), Value: []byte(host)})
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, value := range h[name] {
			pairs = append(pairs, HeaderPair{Name: []byte(lower), Value: []byte(value)})
		}
	}
	pairs = append(pairs, HeaderPair{
		Name:  []byte("content-length"),
		Value: []byte(strconv.Itoa(bodyLen)),
	})
	return pairs
}

// splitAddr splits a "host:port" string, tolerating a bare host.
func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

func protoVersion(r *http.Request) string {
	switch {
	case r.ProtoMajor == 2:
		return "2"
	case r.ProtoMajor == 1 && r.ProtoMinor == 0:
		return "1.0"
	default:
		return "1.1"
	}
}
