package trace

// Metric is an aggregated timing total for one named category of work within
// a trace, as produced by the metric aggregation engine. The active flags
// mark totals that still included a running timer when the snapshot was
// taken.
type Metric struct {
	Name      string `json:"name"`
	Total     int64  `json:"total"`
	Min       int64  `json:"min"`
	Max       int64  `json:"max"`
	Count     int64  `json:"count"`
	Active    bool   `json:"active"`
	MinActive bool   `json:"minActive"`
	MaxActive bool   `json:"maxActive"`
}
