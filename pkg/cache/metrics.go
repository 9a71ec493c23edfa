package cache

// Eviction reasons reported to CacheMetrics.
const (
	EvictionCapacity = "capacity"
	EvictionExpired  = "expired"
	EvictionCleared  = "cleared"
)

// CacheMetrics receives cache observations.
//
// Implementations must be safe for concurrent use. A nil CacheMetrics is
// valid and disables collection entirely (see pkg/metrics).
type CacheMetrics interface {
	// RecordHit records a Get that found an entry.
	RecordHit()

	// RecordMiss records a Get that found nothing.
	RecordMiss()

	// RecordEviction records n entries removed for the given reason.
	RecordEviction(reason string, n int)

	// RecordSize records the current number of entries.
	RecordSize(n int)
}

func recordHit(m CacheMetrics) {
	if m != nil {
		m.RecordHit()
	}
}

func recordMiss(m CacheMetrics) {
	if m != nil {
		m.RecordMiss()
	}
}

func recordEviction(m CacheMetrics, reason string, n int) {
	if m != nil && n > 0 {
		m.RecordEviction(reason, n)
	}
}

func recordSize(m CacheMetrics, n int) {
	if m != nil {
		m.RecordSize(n)
	}
}
