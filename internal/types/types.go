package types

import "time"

// TargetLevel is a single pending long-entry alert: the owner is notified once
// when the symbol's price drops to or below TargetPrice, then the level is gone.
type TargetLevel struct {
	Symbol      string    `json:"symbol"`
	TargetPrice float64   `json:"target_price"`
	CreatedAt   time.Time `json:"created_at"`
}
