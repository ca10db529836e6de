package insight

import (
	"fmt"

	"cropsight/internal/types"
)

// Completeness below this threshold forces the forecast category regardless of
// how healthy the latest NDVI reading looks.
const ForecastCompletenessFloor = 50

// EmitCategory maps a classification onto the user-facing category and its
// message. The precedence is fixed: no status wins over everything, then the
// low-completeness gate, then the status-to-category map. Messages are fully
// deterministic; identical inputs produce identical strings.
func EmitCategory(status *types.StatusResult, completeness int) types.CategoryResult {
	if status == nil {
		return types.CategoryResult{
			Category: types.CategoryForecast,
			Message:  "Insufficient data to assess crop health for this window.",
		}
	}

	if completeness < ForecastCompletenessFloor {
		return types.CategoryResult{
			Category: types.CategoryForecast,
			Message: fmt.Sprintf(
				"Signal coverage is %d%% of expected; assessment is provisional until more observations arrive.",
				completeness,
			),
		}
	}

	switch status.Status {
	case types.StatusHealthy:
		return types.CategoryResult{
			Category: types.CategoryObservation,
			Message:  fmt.Sprintf("Vegetation is healthy with an NDVI of %.2f.", status.NDVIMean),
		}
	case types.StatusWatch:
		return types.CategoryResult{
			Category: types.CategoryAdvisory,
			Message:  fmt.Sprintf("Vegetation vigor is declining; NDVI at %.2f warrants closer monitoring.", status.NDVIMean),
		}
	default:
		return types.CategoryResult{
			Category: types.CategoryAlert,
			Message:  fmt.Sprintf("Vegetation is stressed with an NDVI of %.2f; immediate attention is recommended.", status.NDVIMean),
		}
	}
}
