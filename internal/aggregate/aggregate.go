// Package aggregate erstellt Prüfberichte über den Zustand eines Pools.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourorg/tiered-staking/internal/accrual"
	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
)

// Report fasst die Positionen eines Pools zusammen
type Report struct {
	Pool string `json:"pool"`

	// TotalStaked ist der im Pool gespeicherte Wert
	TotalStaked uint64 `json:"total_staked"`
	// SumPrincipal ist die Summe aller Positionen
	SumPrincipal uint64 `json:"sum_principal"`
	// Consistent ist true, wenn beide Werte übereinstimmen
	Consistent bool `json:"consistent"`

	TotalRewardsDistributed uint64 `json:"total_rewards_distributed"`
	PendingRewards          uint64 `json:"pending_rewards"`

	Positions       int `json:"positions"`
	ActivePositions int `json:"active_positions"`

	WeightedRate float64        `json:"weighted_rate"`
	MedianRate   float64        `json:"median_rate"`
	TierCounts   map[string]int `json:"tier_counts"`

	GeneratedAt int64 `json:"generated_at"`
}

// Audit prüft, ob total_staked der Summe aller Positionen entspricht, und
// berechnet Kennzahlen zu den eingefrorenen Zinssätzen
func Audit(pool *model.PoolAggregate, positions []*model.StakePosition, now int64) (Report, error) {
	report := Report{
		Pool:                    pool.ID,
		TotalStaked:             pool.TotalStaked,
		TotalRewardsDistributed: pool.TotalRewardsDistributed,
		Positions:               len(positions),
		TierCounts:              make(map[string]int),
		GeneratedAt:             now,
	}

	active := make([]*model.StakePosition, 0, len(positions))
	for _, p := range positions {
		sum, err := safemath.Add(report.SumPrincipal, p.Principal)
		if err != nil {
			return Report{}, fmt.Errorf("sum principals: %w", err)
		}
		report.SumPrincipal = sum
		if p.Principal == 0 {
			continue
		}
		active = append(active, p)
		report.TierCounts[p.Level.String()]++

		pending, err := accrual.Pending(p, now)
		if err != nil {
			return Report{}, fmt.Errorf("pending reward of %s: %w", p.Owner.Hex(), err)
		}
		if report.PendingRewards, err = safemath.Add(report.PendingRewards, pending); err != nil {
			return Report{}, fmt.Errorf("sum pending rewards: %w", err)
		}
	}

	report.ActivePositions = len(active)
	report.Consistent = report.SumPrincipal == report.TotalStaked
	report.WeightedRate = Weighted(active)
	report.MedianRate = Median(active, func(p *model.StakePosition) float64 {
		return float64(p.EffectiveRate)
	})
	return report, nil
}

// Weighted berechnet den nach Principal gewichteten Durchschnittszinssatz
func Weighted(positions []*model.StakePosition) float64 {
	var total, weighted float64
	for _, p := range positions {
		if p.Principal == 0 {
			continue
		}
		total += float64(p.Principal)
		weighted += float64(p.EffectiveRate) * float64(p.Principal)
	}
	if total <= 0 || math.IsNaN(weighted) {
		return 0
	}
	return weighted / total
}

// Median berechnet den Medianwert für eine bestimmte Eigenschaft
// Robuster gegen einzelne sehr große Positionen als der Durchschnitt
func Median(positions []*model.StakePosition, selector func(*model.StakePosition) float64) float64 {
	if len(positions) == 0 {
		return 0
	}

	values := make([]float64, len(positions))
	for i, p := range positions {
		values[i] = selector(p)
	}
	sort.Float64s(values)

	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}
