// internal/commission/allocate.go
package commission

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/javajoker/commission-backend/internal/apperr"
)

// MaxOrderValueCents keeps value*basisPoints inside int64.
const MaxOrderValueCents = math.MaxInt64 / BasisPointScale

// Eligibility marks which of N1, N2, N3 receive their direct rate.
type Eligibility [3]bool

type Share struct {
	Role            Role       `json:"role"`
	AffiliateID     *uuid.UUID `json:"affiliate_id"`
	BeneficiaryName string     `json:"beneficiary_name,omitempty"`
	BasisPoints     int        `json:"basis_points"`
	Percentage      float64    `json:"percentage"`
	ValueCents      int64      `json:"value_cents"`
}

// Redistribution records how unclaimed level rates were moved to the managers.
type Redistribution struct {
	UnusedBasisPoints   int `json:"unused_basis_points"`
	Manager1BasisPoints int `json:"manager_1_basis_points"`
	Manager2BasisPoints int `json:"manager_2_basis_points"`
}

type Breakdown struct {
	OrderID               uuid.UUID       `json:"order_id"`
	OrderValueCents       int64           `json:"order_value_cents"`
	Shares                []Share         `json:"shares"`
	TotalBasisPoints      int             `json:"total_basis_points"`
	TotalCents            int64           `json:"total_cents"`
	PoolCents             int64           `json:"pool_cents"`
	RedistributionApplied bool            `json:"redistribution_applied"`
	Redistribution        *Redistribution `json:"redistribution,omitempty"`
}

// Share returns the share for role.
func (b *Breakdown) Share(role Role) (Share, bool) {
	for _, s := range b.Shares {
		if s.Role == role {
			return s, true
		}
	}
	return Share{}, false
}

// RemainderCents is what the primary receiver keeps after commissions.
func (b *Breakdown) RemainderCents() int64 {
	return b.OrderValueCents - b.TotalCents
}

// Allocate splits the commission pool of orderValueCents among the five roles.
//
// Shares are computed in basis points. Cents are allocated with the largest
// remainder method so the share total always equals the half-up rounded pool;
// every share stays within one cent of its own half-up value.
func Allocate(plan Plan, orderValueCents int64, eligible Eligibility) (*Breakdown, error) {
	const op = "commission.Allocate"

	if orderValueCents <= 0 {
		return nil, apperr.Validation(op, "order_value_cents", "order value must be a positive number of cents")
	}
	if orderValueCents > MaxOrderValueCents {
		return nil, apperr.Validation(op, "order_value_cents", "order value exceeds the supported range")
	}

	var rates [5]int
	unused := 0
	for level := 1; level <= 3; level++ {
		rate := plan.LevelRate(level)
		if eligible[level-1] {
			rates[level-1] = rate
		} else {
			unused += rate
		}
	}

	m1Extra := unused/2 + unused%2
	m2Extra := unused / 2
	rates[3] = plan.Manager(1).Rate + m1Extra
	rates[4] = plan.Manager(2).Rate + m2Extra

	totalBP := 0
	for _, r := range rates {
		totalBP += r
	}
	if totalBP != PoolBasisPoints || totalBP != plan.PoolBasisPoints() {
		return nil, apperr.Consistency(op, fmt.Sprintf("share rates add up to %d basis points, expected %d", totalBP, PoolBasisPoints))
	}

	values, pool := allocateCents(orderValueCents, rates)

	b := &Breakdown{
		OrderValueCents:  orderValueCents,
		Shares:           make([]Share, 0, len(Roles)),
		TotalBasisPoints: totalBP,
		PoolCents:        pool,
	}
	for i, role := range Roles {
		if rates[i] < 0 || values[i] < 0 {
			return nil, apperr.Consistency(op, fmt.Sprintf("negative share for %s", role))
		}
		s := Share{
			Role:        role,
			BasisPoints: rates[i],
			Percentage:  float64(rates[i]) / BasisPointScale,
			ValueCents:  values[i],
		}
		switch role {
		case RoleManager1:
			s.BeneficiaryName = plan.Manager(1).Name
		case RoleManager2:
			s.BeneficiaryName = plan.Manager(2).Name
		}
		b.Shares = append(b.Shares, s)
		b.TotalCents += values[i]
	}

	if diff := b.TotalCents - pool; diff > 1 || diff < -1 {
		return nil, apperr.Consistency(op, fmt.Sprintf("share values add up to %d cents, pool is %d", b.TotalCents, pool))
	}

	if unused > 0 {
		b.RedistributionApplied = true
		b.Redistribution = &Redistribution{
			UnusedBasisPoints:   unused,
			Manager1BasisPoints: m1Extra,
			Manager2BasisPoints: m2Extra,
		}
	}
	return b, nil
}

// allocateCents returns per-rate cents and the rounded pool.
func allocateCents(value int64, rates [5]int) ([5]int64, int64) {
	var (
		values     [5]int64
		remainders [5]int64
		floorSum   int64
		poolNum    int64
	)
	for i, r := range rates {
		num := value * int64(r)
		values[i] = num / BasisPointScale
		remainders[i] = num % BasisPointScale
		floorSum += values[i]
		poolNum += num
	}

	pool := roundHalfUp(poolNum, BasisPointScale)
	leftover := pool - floorSum

	order := []int{0, 1, 2, 3, 4}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for _, idx := range order {
		if leftover <= 0 {
			break
		}
		if remainders[idx] == 0 {
			break
		}
		values[idx]++
		leftover--
	}
	return values, pool
}

// PoolCents is the half-up rounded 30% pool of orderValueCents.
func PoolCents(orderValueCents int64) int64 {
	return roundHalfUp(orderValueCents*PoolBasisPoints, BasisPointScale)
}

func roundHalfUp(num, den int64) int64 {
	q := num / den
	if (num%den)*2 >= den {
		q++
	}
	return q
}
