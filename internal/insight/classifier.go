package insight

import (
	"cropsight/internal/types"
)

// Fixed NDVI classification thresholds. Snapshotted into every result so a
// stored conclusion stays explainable if these ever change.
const (
	ThresholdHealthy = 0.6
	ThresholdWatch   = 0.3
)

// Thresholds returns the active classification thresholds.
func Thresholds() types.StatusThresholds {
	return types.StatusThresholds{Healthy: ThresholdHealthy, Watch: ThresholdWatch}
}

// ClassifyStatus buckets crop health from the NDVI mean of the most recent
// vegetation signal in the window. Weather signals and older vegetation
// signals carry no weight here; recency is the whole signal.
//
// Returns nil when the window holds no vegetation signals, which downstream
// consumers treat as "no status" rather than an error.
func ClassifyStatus(input *types.InferenceInput) *types.StatusResult {
	if len(input.Vegetation) == 0 {
		return nil
	}

	mean := input.Vegetation[len(input.Vegetation)-1].NDVI.Mean

	status := types.StatusStressed
	switch {
	case mean >= ThresholdHealthy:
		status = types.StatusHealthy
	case mean >= ThresholdWatch:
		status = types.StatusWatch
	}

	return &types.StatusResult{
		Status:     status,
		NDVIMean:   mean,
		Thresholds: Thresholds(),
	}
}
