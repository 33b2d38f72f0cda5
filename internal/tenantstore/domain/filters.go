package domain

import "github.com/bwmarrin/snowflake"

type AccountFilter struct {
	Status             string
	Segment            string
	TerritoryManagerID *snowflake.ID
}

type TaskFilter struct {
	Status    string
	AccountID *snowflake.ID
}

// WeightsInput is a scoring weight update; weights must be non-negative and sum to a
// positive value.
type WeightsInput struct {
	RevenueWeight     float64 `json:"revenue_weight"`
	GapWeight         float64 `json:"gap_weight"`
	PenetrationWeight float64 `json:"penetration_weight"`
	RecencyWeight     float64 `json:"recency_weight"`
}

func (w WeightsInput) Valid() bool {
	for _, v := range []float64{w.RevenueWeight, w.GapWeight, w.PenetrationWeight, w.RecencyWeight} {
		if v < 0 {
			return false
		}
	}
	return w.RevenueWeight+w.GapWeight+w.PenetrationWeight+w.RecencyWeight > 0
}
