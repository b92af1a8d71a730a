package domain

// ScreeningRule is a CEL-based rule applied to transactions at ingestion.
// The expression evaluates against transaction and referenced-entity
// variables and returns a bool (matched) or a double in [0, 1] (partial
// match strength). Matched rules contribute weight x strength to the
// transaction's fraud score.
type ScreeningRule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"` // contribution scale in [0, 1]
	Enabled     bool    `json:"enabled"`
}
