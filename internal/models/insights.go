package models

// Insights is saving advice derived from recent purchases
type Insights struct {
	Text string `json:"insights"`
	// Fallback is set when generic advice was served instead of a personalised answer.
	Fallback bool `json:"fallback"`
}
