// Package authprovider implements cache-aside credential authentication.
//
// A Provider sits in front of a directory.Authenticator. Each call derives a
// cache key from the presented credentials and looks it up in a bounded TTL
// cache. A hit is returned without contacting the directory. A miss calls the
// directory and, on success only, caches the resulting Profile. Rejections
// and failures are never cached, so a wrong password followed by the right
// one succeeds immediately, and a directory outage does not lock users out
// beyond its own duration.
//
// Consequences of caching credentials:
//
//   - A password changed in the directory keeps working here for up to
//     TimeToLive + SweepInterval, because cached entries are never
//     re-validated.
//   - Cache keys are SHA-256 digests; cleartext secrets are never stored.
//
// Concurrent misses for the same key are not coalesced. Each calls the
// directory and the last Put wins.
package authprovider
