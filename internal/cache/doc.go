// Package cache provides the multi-level caching layer for LeafWise.
//
// Recommendation generation must stay fast end to end, so repeated
// reads of environmental data, care plans, and model predictions are
// absorbed by a two-tier cache:
//
//  1. L1: bounded in-process store (fast, per-instance, LRU-evicted)
//  2. L2: Redis (larger, shared across instances, native TTL)
//
// # Orchestrator
//
// Service is the public surface consumed by the domain:
//
//	svc := cache.NewService(redisClient, cache.DefaultServiceConfig(), logger)
//	defer svc.Close()
//
//	key := cache.BuildKey(cache.TypeCarePlan, plantID, "latest")
//	svc.Set(ctx, key, plan, cache.TypeCarePlan,
//	    cache.WithTags("plant:"+plantID, "care_plan"))
//
//	var plan CarePlan
//	if svc.Get(ctx, key, cache.TypeCarePlan, &plan) {
//	    // hit
//	}
//
// Reads check L1 first, then L2, back-filling L1 on an L2 hit. Writes
// go to L2 first, then L1. Per-type default TTLs come from the policy
// table and can be overridden per call with WithTTL.
//
// # Tag invalidation
//
// Entries may carry tags (e.g. "plant:5"). InvalidateByTags removes all
// matching entries from both tiers using the tag sets kept in L2; L1 is
// scanned directly since it is small.
//
// # Failure semantics
//
// Redis being slow or down is never an error for callers: every L2 call
// carries a bounded timeout, failed reads surface as misses and failed
// writes as false. Callers follow the cache-aside pattern and recompute
// on a miss.
//
// # Warming
//
// Warmer periodically refreshes entries for active entities using
// domain-supplied Fetchers, writing through Set so warmed data follows
// the same TTL and tagging rules as demand-filled data.
//
// L1 views are per-instance and eventually consistent; no cross-instance
// coherence is attempted.
package cache
