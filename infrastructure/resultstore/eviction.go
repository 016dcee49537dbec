package resultstore

import (
	domainCache "github.com/lumio-chat/inlinegw/domains/cache"
)

// evictionExcess returns how many of the oldest entries must go to bring
// a store holding count entries back down to the policy's low watermark.
// Zero means the high watermark has not been crossed, or the policy is
// disabled. Both backends share this so they trim identically.
func evictionExcess(count int64, policy domainCache.EvictionPolicy) int64 {
	if policy.HighWater <= 0 || policy.LowWater <= 0 {
		return 0
	}
	if count <= int64(policy.HighWater) {
		return 0
	}
	return count - int64(policy.LowWater)
}
