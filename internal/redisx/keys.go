package redisx

import "time"

const (
	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Search result cache: search:{version}:{query}. Every replica write
	// bumps the version so older entries are never read again.
	KeySearch        = "search:%d:%s"
	KeySearchVersion = "search:version"
)

var (
	TTLDedup = 48 * time.Hour
)
