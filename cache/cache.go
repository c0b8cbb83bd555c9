// Package cache implements the optional cache collaborator in front of
// the Manifest Store: manifest lookups and a user's active installations
// list, both strictly invalidatable projections — the core never assumes
// the cache is present or fresh.
package cache

import (
	"fmt"
	"time"
)

// Default TTLs for the cache front.
const (
	ManifestTTL      = time.Hour
	InstallationsTTL = 5 * time.Minute
	SharedContextTTL = 5 * time.Minute
)

// Cache is the collaborator orchestrator.Orchestrator calls through. A
// miss (found=false) means "fall through to the store" — the store is
// always authoritative.
type Cache interface {
	Get(key string) (value []byte, found bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)

	// InvalidateUserInstallations drops installations:{user_id}.
	InvalidateUserInstallations(userID string)

	// InvalidateManifest drops manifest:{agent_id}:{version}.
	InvalidateManifest(agentID, version string)

	// InvalidateSharedContext drops shared_context:{user_id}.
	InvalidateSharedContext(userID string)
}

// ManifestKey builds the manifest:{agent_id}:{version} cache key.
func ManifestKey(agentID, version string) string {
	return fmt.Sprintf("manifest:%s:%s", agentID, version)
}

// InstallationsKey builds the installations:{user_id} cache key.
func InstallationsKey(userID string) string {
	return fmt.Sprintf("installations:%s", userID)
}

// SharedContextKey builds the shared_context:{user_id} cache key.
func SharedContextKey(userID string) string {
	return fmt.Sprintf("shared_context:%s", userID)
}
