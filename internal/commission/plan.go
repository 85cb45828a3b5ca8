// internal/commission/plan.go
package commission

import (
	"fmt"
)

const (
	// BasisPointScale is the number of basis points in 100%.
	BasisPointScale = 10000
	// PoolBasisPoints is the share of every order paid out as commission (30%).
	PoolBasisPoints = 3000
)

// Role identifies a beneficiary slot in a breakdown.
type Role string

const (
	RoleN1       Role = "n1"
	RoleN2       Role = "n2"
	RoleN3       Role = "n3"
	RoleManager1 Role = "manager_1"
	RoleManager2 Role = "manager_2"
)

// Roles lists every role in allocation order. Ties in the cent allocation are
// resolved in this order.
var Roles = [5]Role{RoleN1, RoleN2, RoleN3, RoleManager1, RoleManager2}

func (r Role) IsAffiliate() bool {
	return r == RoleN1 || r == RoleN2 || r == RoleN3
}

// Level returns 1..3 for affiliate roles and 0 for managers.
func (r Role) Level() int {
	switch r {
	case RoleN1:
		return 1
	case RoleN2:
		return 2
	case RoleN3:
		return 3
	}
	return 0
}

// Manager is one of the two fixed beneficiaries that absorb unclaimed levels.
type Manager struct {
	Name     string
	WalletID string
	Rate     int // basis points
}

// Plan is the immutable rate table used by the calculator and split builder.
type Plan struct {
	levelRates     [3]int
	managers       [2]Manager
	factoryWallet  string
	factoryName    string
	poolBasisPoint int
}

// PlanConfig is the mutable input used to build a Plan.
type PlanConfig struct {
	N1Rate        int
	N2Rate        int
	N3Rate        int
	Manager1      Manager
	Manager2      Manager
	FactoryName   string
	FactoryWallet string
}

// DefaultPlanConfig is the 15/3/2 + 5/5 program.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		N1Rate:      1500,
		N2Rate:      300,
		N3Rate:      200,
		Manager1:    Manager{Name: "Renum", Rate: 500},
		Manager2:    Manager{Name: "JB", Rate: 500},
		FactoryName: "Fábrica",
	}
}

// NewPlan validates the rates and freezes them.
func NewPlan(pc PlanConfig) (Plan, error) {
	rates := []struct {
		name string
		bp   int
	}{
		{"n1", pc.N1Rate}, {"n2", pc.N2Rate}, {"n3", pc.N3Rate},
		{"manager_1", pc.Manager1.Rate}, {"manager_2", pc.Manager2.Rate},
	}
	total := 0
	for _, r := range rates {
		if r.bp < 0 {
			return Plan{}, fmt.Errorf("rate %s must not be negative, got %d", r.name, r.bp)
		}
		total += r.bp
	}
	if total != PoolBasisPoints {
		return Plan{}, fmt.Errorf("commission rates must add up to %d basis points, got %d", PoolBasisPoints, total)
	}

	return Plan{
		levelRates:     [3]int{pc.N1Rate, pc.N2Rate, pc.N3Rate},
		managers:       [2]Manager{pc.Manager1, pc.Manager2},
		factoryWallet:  pc.FactoryWallet,
		factoryName:    pc.FactoryName,
		poolBasisPoint: total,
	}, nil
}

// MustPlan panics on an invalid config. Meant for tests and package defaults.
func MustPlan(pc PlanConfig) Plan {
	p, err := NewPlan(pc)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Plan) PoolBasisPoints() int { return p.poolBasisPoint }

// LevelRate returns the direct rate of level 1..3.
func (p Plan) LevelRate(level int) int {
	if level < 1 || level > 3 {
		return 0
	}
	return p.levelRates[level-1]
}

// Manager returns manager 1 or 2.
func (p Plan) Manager(n int) Manager {
	if n == 2 {
		return p.managers[1]
	}
	return p.managers[0]
}

func (p Plan) FactoryWallet() string { return p.factoryWallet }
func (p Plan) FactoryName() string   { return p.factoryName }
