package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
// Secrets (passwords, bind credentials, tokens) never get a key.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Request & Client
	// ========================================================================
	KeyRequestID = "request_id" // HTTP request ID (chi middleware)
	KeyClientIP  = "client_ip"  // Client IP address
	KeyMethod    = "method"     // HTTP method
	KeyPath      = "path"       // HTTP request path
	KeyStatus    = "status"     // HTTP status code

	// ========================================================================
	// Authentication
	// ========================================================================
	KeyIdentity   = "identity"    // Login name presented by the client
	KeyPrincipal  = "principal"   // Resolved principal (user DN)
	KeyOutcome    = "outcome"     // success, rejected, failed, cached
	KeyDiagnostic = "diagnostic"  // Directory diagnostic message on rejection
	KeyProvider   = "provider"    // Authentication provider name
	KeyStrategy   = "key_strategy" // Cache key derivation strategy

	// ========================================================================
	// Directory (LDAP)
	// ========================================================================
	KeyLDAPURL    = "ldap_url"    // Server URL that handled the operation
	KeyBaseDN     = "base_dn"     // Search base
	KeyFilter     = "filter"      // Search filter (identity already escaped)
	KeyResultCode = "result_code" // LDAP result code
	KeyPoolSize   = "pool_size"   // Current connection pool size
	KeyPoolIdle   = "pool_idle"   // Idle connections in the pool

	// ========================================================================
	// Cache Layer
	// ========================================================================
	KeyCache         = "cache"          // Cache name
	KeyCacheHit      = "cache_hit"      // Cache hit indicator
	KeyCacheSize     = "cache_size"     // Current cache size
	KeyCacheCapacity = "cache_capacity" // Maximum cache capacity
	KeyEvicted       = "evicted"        // Number of entries evicted

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyOperation  = "operation"   // Sub-operation type for complex operations
	KeyAttempt    = "attempt"     // Retry/failover attempt number
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// RequestID returns a slog.Attr for the HTTP request ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Identity returns a slog.Attr for the login name
func Identity(id string) slog.Attr {
	return slog.String(KeyIdentity, id)
}

// Principal returns a slog.Attr for the resolved principal DN
func Principal(dn string) slog.Attr {
	return slog.String(KeyPrincipal, dn)
}

// Outcome returns a slog.Attr for an authentication outcome
func Outcome(o string) slog.Attr {
	return slog.String(KeyOutcome, o)
}

// Diagnostic returns a slog.Attr for a directory diagnostic message
func Diagnostic(msg string) slog.Attr {
	return slog.String(KeyDiagnostic, msg)
}

// LDAPURL returns a slog.Attr for an LDAP server URL
func LDAPURL(url string) slog.Attr {
	return slog.String(KeyLDAPURL, url)
}

// ResultCode returns a slog.Attr for an LDAP result code
func ResultCode(code uint16) slog.Attr {
	return slog.Int(KeyResultCode, int(code))
}

// Cache returns a slog.Attr for a cache name
func Cache(name string) slog.Attr {
	return slog.String(KeyCache, name)
}

// CacheHit returns a slog.Attr for cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheSize returns a slog.Attr for current cache size
func CacheSize(size int) slog.Attr {
	return slog.Int(KeyCacheSize, size)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
