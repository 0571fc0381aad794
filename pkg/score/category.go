package score

// Category is one of the fixed final-score bands used for reporting.
type Category string

const (
	CategoryHighRisk Category = "high_risk"
	CategoryModerate Category = "moderate_risk"
	CategoryGood     Category = "good_credit"
	CategoryElite    Category = "elite"
)

// Band is the half-open score range [Min, Max) of a category. The top band
// also includes MaxScore.
type Band struct {
	Category Category `json:"category" yaml:"category"`
	Label    string   `json:"label" yaml:"label"`
	Min      float64  `json:"min" yaml:"min"`
	Max      float64  `json:"max" yaml:"max"`
}

// Bands lists the categories in ascending score order.
var Bands = []Band{
	{Category: CategoryHighRisk, Label: "High Risk (0-400)", Min: 0, Max: 400},
	{Category: CategoryModerate, Label: "Moderate Risk (400-600)", Min: 400, Max: 600},
	{Category: CategoryGood, Label: "Good Credit (600-800)", Min: 600, Max: 800},
	{Category: CategoryElite, Label: "Elite (800-1000)", Min: 800, Max: MaxScore},
}

// CategoryOf returns the band a final score falls into. Scores outside
// [0,1000] are assigned to the nearest band.
func CategoryOf(s float64) Category {
	for _, b := range Bands[:len(Bands)-1] {
		if s < b.Max {
			return b.Category
		}
	}
	return CategoryElite
}
