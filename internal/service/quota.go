package service

import (
	"fmt"
	"math"
)

const (
	// MaxRecordsPerRequest is the sink's per-request record ceiling.
	MaxRecordsPerRequest = 500

	// cyclesPerWindow amortizes the per-minute target over 60 cycles.
	cyclesPerWindow = 60
)

// ComputeQuota returns the number of records pulled per production cycle.
// Products that overflow int saturate at math.MaxInt.
func ComputeQuota(nodeCount, observationTypes int) int {
	if nodeCount <= 0 || observationTypes <= 0 {
		return 0
	}
	if nodeCount > math.MaxInt/observationTypes {
		return math.MaxInt
	}
	return nodeCount * observationTypes / cyclesPerWindow
}

// CheckQuota rejects quotas that would not fit a single sink request.
func CheckQuota(quota, ceiling int) error {
	if ceiling <= 0 {
		ceiling = MaxRecordsPerRequest
	}
	if quota >= ceiling {
		return fmt.Errorf("quota %d >= ceiling %d, add shards or lower the rate: %w", quota, ceiling, ErrQuotaExceedsCapacity)
	}
	return nil
}

// PlanQuota computes and validates the quota in one step.
func PlanQuota(nodeCount, observationTypes int) (int, error) {
	quota := ComputeQuota(nodeCount, observationTypes)
	if err := CheckQuota(quota, MaxRecordsPerRequest); err != nil {
		return 0, err
	}
	return quota, nil
}
