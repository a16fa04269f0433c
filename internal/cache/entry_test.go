package cache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "cp:42", BuildKey(TypeCarePlan, "42"))
	assert.Equal(t, "cp:42:latest", BuildKey(TypeCarePlan, "42", "latest"))
	assert.Equal(t, "env:7:2026-08-23", BuildKey(TypeEnvironmentalData, "7", "2026-08-23"))
	assert.Equal(t, "sr:ficus-lyrata", BuildKey(TypeSpeciesRules, "ficus-lyrata"))
	assert.Equal(t, "ml:42", BuildKey(TypeMLPredictions, "42"))
}

func TestBuildKey_UnknownTypeFallsBackToName(t *testing.T) {
	assert.Equal(t, "custom:1", BuildKey(DataType("custom"), "1"))
}

func TestBuildKey_LongKeysCollapse(t *testing.T) {
	longID := strings.Repeat("x", 300)

	key := BuildKey(TypeCarePlan, longID)
	assert.LessOrEqual(t, len(key), MaxKeyLength)
	assert.True(t, strings.HasPrefix(key, "cp:sha256:"))

	// Deterministic: two instances derive the same key for the same
	// logical data.
	assert.Equal(t, key, BuildKey(TypeCarePlan, longID))

	other := BuildKey(TypeCarePlan, strings.Repeat("y", 300))
	assert.NotEqual(t, key, other)
}

func TestBuildKey_ShortKeysNotCollapsed(t *testing.T) {
	id := strings.Repeat("x", 200)
	assert.Equal(t, "cp:"+id, BuildKey(TypeCarePlan, id))
}

func TestEntry_Expired(t *testing.T) {
	now := time.Now()

	noTTL := &Entry{}
	assert.False(t, noTTL.Expired(now))

	live := &Entry{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, live.Expired(now))

	stale := &Entry{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, stale.Expired(now))
}

func TestEntry_HasAnyTag(t *testing.T) {
	entry := &Entry{Tags: []string{"plant:5", "care_plan"}}

	assert.True(t, entry.hasAnyTag([]string{"plant:5"}))
	assert.True(t, entry.hasAnyTag([]string{"nope", "care_plan"}))
	assert.False(t, entry.hasAnyTag([]string{"plant:9"}))
	assert.False(t, entry.hasAnyTag(nil))
}

func TestDefaultTTLs(t *testing.T) {
	assert.Equal(t, time.Hour, DefaultTTLs[TypeCarePlan])
	assert.Equal(t, 15*time.Minute, DefaultTTLs[TypeEnvironmentalData])
	assert.Equal(t, 24*time.Hour, DefaultTTLs[TypeSpeciesRules])
	assert.Equal(t, 30*time.Minute, DefaultTTLs[TypeMLPredictions])
}
