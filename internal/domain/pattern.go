package domain

import (
	"time"
)

// PatternType identifies a detection algorithm's finding.
type PatternType string

const (
	PatternCircularFlow PatternType = "circular_flow"
	PatternFanOut       PatternType = "fan_out"
	PatternFanIn        PatternType = "fan_in"
	PatternMuleAccount  PatternType = "mule_account"
	PatternSharedDevice PatternType = "shared_device"
	PatternSharedIP     PatternType = "shared_ip"
)

// CycleStep is one hop of a circular flow: the transaction that moved the
// money and its amount, in cycle order.
type CycleStep struct {
	TransactionID string  `json:"transactionId"`
	Amount        float64 `json:"amount"`
}

// Pattern is a detection finding. Evidence is typed: Entities holds the
// concrete participant entity references and Cycle holds the ordered
// transaction steps for circular flows. Free-text Summary is display-only
// and is never parsed back into IDs.
type Pattern struct {
	Type       PatternType `json:"type"`
	Confidence float64     `json:"confidence"` // [0, 1]
	Entities   []EntityRef `json:"entities"`
	Cycle      []CycleStep `json:"cycle,omitempty"`

	// Counterparties is the distinct sender/recipient count for fan
	// patterns; zero otherwise.
	Counterparties int     `json:"counterparties,omitempty"`
	TotalAmount    float64 `json:"totalAmount,omitempty"`

	Summary    string    `json:"summary,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

// RiskScore is the result of a scoring computation: a clamped score with the
// human-readable factors that contributed to it.
type RiskScore struct {
	Score        float64   `json:"score"` // [0, 100]
	Factors      []string  `json:"factors"`
	CalculatedAt time.Time `json:"calculatedAt"`
}

// Category returns the canonical risk band for the score.
func (r RiskScore) Category() RiskLevel {
	return RiskCategory(r.Score)
}

// Canonical risk banding thresholds. Scores at or above a threshold fall
// into that band.
const (
	BandMedium   = 40.0
	BandHigh     = 60.0
	BandCritical = 80.0
)

// RiskCategory maps a 0-100 risk score to the canonical band used across
// dashboards, dossiers, and reports.
func RiskCategory(score float64) RiskLevel {
	switch {
	case score >= BandCritical:
		return RiskCritical
	case score >= BandHigh:
		return RiskHigh
	case score >= BandMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AlertSeverity maps a pattern confidence in [0, 1] to alert severity.
func AlertSeverity(confidence float64) RiskLevel {
	switch {
	case confidence >= 0.9:
		return RiskCritical
	case confidence >= 0.7:
		return RiskHigh
	case confidence >= 0.5:
		return RiskMedium
	default:
		return RiskLow
	}
}
