package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DataType identifies a logical class of cached data. Every type has a
// fixed key prefix and a default TTL in the policy table.
type DataType string

const (
	TypeCarePlan          DataType = "care_plan"
	TypeEnvironmentalData DataType = "environmental_data"
	TypeSpeciesRules      DataType = "species_rules"
	TypeMLPredictions     DataType = "ml_predictions"
)

// keyPrefixes is the fixed vocabulary of key prefixes, one per data type.
var keyPrefixes = map[DataType]string{
	TypeCarePlan:          "cp",
	TypeEnvironmentalData: "env",
	TypeSpeciesRules:      "sr",
	TypeMLPredictions:     "ml",
}

// DefaultTTLs is the built-in TTL policy table. It is consulted on every
// Set unless the caller passes an explicit override.
var DefaultTTLs = map[DataType]time.Duration{
	TypeCarePlan:          time.Hour,
	TypeEnvironmentalData: 15 * time.Minute,
	TypeSpeciesRules:      24 * time.Hour,
	TypeMLPredictions:     30 * time.Minute,
}

const (
	// MaxKeyLength is the longest key the wire protocol accepts. Longer
	// keys are collapsed to a content hash so that any two instances
	// derive identical keys for the same logical data.
	MaxKeyLength = 250

	// TagGracePeriod is added to a tag set's TTL on every write so the
	// tag index outlives the data it indexes by a bounded margin. Too
	// short risks losing the index before the data expires; too long
	// wastes memory.
	TagGracePeriod = 5 * time.Minute
)

// BuildKey derives the cache key for an entity of the given type, in the
// form <type-prefix>:<entity-id>[:<qualifier>...]. Keys exceeding
// MaxKeyLength are collapsed to <type-prefix>:sha256:<hex>.
func BuildKey(typ DataType, entityID string, qualifiers ...string) string {
	prefix, ok := keyPrefixes[typ]
	if !ok {
		prefix = string(typ)
	}

	parts := append([]string{prefix, entityID}, qualifiers...)
	key := strings.Join(parts, ":")
	if len(key) <= MaxKeyLength {
		return key
	}

	sum := sha256.Sum256([]byte(key))
	return prefix + ":sha256:" + hex.EncodeToString(sum[:])
}

// Entry is one cached value plus its lifecycle metadata. The value is an
// opaque JSON-encoded payload; the cache never interprets it.
type Entry struct {
	Key          string
	Value        []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time // zero means no TTL
	AccessCount  int64
	LastAccessed time.Time
	SizeBytes    int
	Tags         []string
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// touch updates access metadata on a read.
func (e *Entry) touch(now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
}

// hasAnyTag reports whether the entry carries at least one of the tags.
func (e *Entry) hasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
