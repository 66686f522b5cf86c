package usage

import "math"

// CarbonEstimate is the environmental cost of one operation.
type CarbonEstimate struct {
	CO2Mg                float64 `json:"co2_mg"`
	EnergyWh             float64 `json:"energy_wh"`
	EquivalentTreeSecond float64 `json:"equivalent_trees_seconds"`
	Description          string  `json:"description"`
}

// Per-operation estimates based on published figures for AI inference cost.
var estimates = map[string]CarbonEstimate{
	"vision_inference_free": {CO2Mg: 0.5, EnergyWh: 0.001, EquivalentTreeSecond: 0.02, Description: "Free-tier vision model inference"},
	"vision_inference_paid": {CO2Mg: 2.0, EnergyWh: 0.004, EquivalentTreeSecond: 0.08, Description: "Paid vision model inference"},
	"web_scan_page":         {CO2Mg: 0.3, EnergyWh: 0.0006, EquivalentTreeSecond: 0.012, Description: "Single page web scan"},
}

var fallbackEstimate = CarbonEstimate{CO2Mg: 0.1, EnergyWh: 0.0002, EquivalentTreeSecond: 0.004, Description: "Unknown operation"}

// EstimateFor returns the carbon estimate for an operation key, scaled by count.
func EstimateFor(operation string, count int) CarbonEstimate {
	base, ok := estimates[operation]
	if !ok {
		base = fallbackEstimate
	}
	n := float64(count)
	return CarbonEstimate{
		CO2Mg:                round(base.CO2Mg*n, 3),
		EnergyWh:             round(base.EnergyWh*n, 6),
		EquivalentTreeSecond: round(base.EquivalentTreeSecond*n, 4),
		Description:          base.Description,
	}
}

// TierOperation maps a provider tier to its estimate key.
func TierOperation(tier string) string {
	if tier == "paid" {
		return "vision_inference_paid"
	}
	return "vision_inference_free"
}

// CarbonDisplay is the human-facing framing of accumulated carbon cost.
type CarbonDisplay struct {
	CO2Mg                  float64 `json:"co2_mg"`
	CO2Grams               float64 `json:"co2_grams"`
	TreesEquivalentMinutes float64 `json:"trees_equivalent_minutes"`
	LightbulbSeconds       float64 `json:"lightbulb_seconds"`
}

// FormatCarbon converts accumulated milligrams of CO2 into display figures.
// An average tree absorbs ~22g CO2 per day; a 60W bulb emits ~36g per hour.
func FormatCarbon(totalMg float64) CarbonDisplay {
	return CarbonDisplay{
		CO2Mg:                  round(totalMg, 2),
		CO2Grams:               round(totalMg/1000, 4),
		TreesEquivalentMinutes: round(totalMg/1000/22*60, 2),
		LightbulbSeconds:       round(totalMg/1000/36*3600, 2),
	}
}

func round(v float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}
