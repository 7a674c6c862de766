// Package identity derives a stable ledger key for a caller.
// Resolution is pure and total: it always returns a non-empty string and
// never fails. Raw network addresses are never used directly as keys; they
// are mixed through a salted cryptographic hash first.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// DefaultPrefix tags anonymous identities when no prefix is configured.
const DefaultPrefix = "public"

// hashLen is the number of hex characters kept from the address hash.
const hashLen = 16

// Config holds process configuration for anonymous identity derivation.
type Config struct {
	// Salt is mixed into the address hash. Process configuration, never
	// caller-supplied.
	Salt string

	// Prefix namespaces anonymous identifiers, e.g. "public" -> "public_ab12...".
	Prefix string
}

// Request carries the identity candidates for one inbound call.
type Request struct {
	// Explicit is an identifier supplied by the caller (highest precedence).
	Explicit string

	// Authenticated is the identity established by an authentication layer.
	Authenticated string

	// RemoteAddr is the caller's network address ("host" or "host:port").
	RemoteAddr string
}

// Resolve derives the ledger key for a request. First match wins:
// explicit id, authenticated id, salted hash of the network address,
// fixed unknown sentinel.
func Resolve(req Request, cfg Config) string {
	if id := strings.TrimSpace(req.Explicit); id != "" {
		return id
	}
	if id := strings.TrimSpace(req.Authenticated); id != "" {
		return id
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	addr := normalizeAddr(req.RemoteAddr)
	if addr == "" {
		return prefix + "_unknown"
	}

	sum := sha256.Sum256([]byte(cfg.Salt + ":" + addr))
	return prefix + "_" + hex.EncodeToString(sum[:])[:hashLen]
}

// normalizeAddr strips the port from "host:port" forms so that one client
// maps to one identity across connections.
func normalizeAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
