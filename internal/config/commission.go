// internal/config/commission.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/javajoker/commission-backend/internal/commission"
)

// planFile is the YAML overlay read from COMMISSION_PLAN_FILE. Zero values
// keep whatever the environment configured.
type planFile struct {
	Rates struct {
		N1 *int `yaml:"n1"`
		N2 *int `yaml:"n2"`
		N3 *int `yaml:"n3"`
	} `yaml:"rates"`
	Managers []struct {
		Name     string `yaml:"name"`
		WalletID string `yaml:"wallet_id"`
		Rate     *int   `yaml:"rate"`
	} `yaml:"managers"`
	Factory struct {
		Name     string `yaml:"name"`
		WalletID string `yaml:"wallet_id"`
	} `yaml:"factory"`
	TriggerKinds []string `yaml:"trigger_kinds"`
}

func (c *CommissionConfig) applyPlanFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read commission plan file: %w", err)
	}
	return c.applyPlanYAML(raw)
}

func (c *CommissionConfig) applyPlanYAML(raw []byte) error {
	var pf planFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return fmt.Errorf("failed to parse commission plan file: %w", err)
	}

	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	setInt(&c.N1Rate, pf.Rates.N1)
	setInt(&c.N2Rate, pf.Rates.N2)
	setInt(&c.N3Rate, pf.Rates.N3)

	if len(pf.Managers) > 2 {
		return fmt.Errorf("commission plan file lists %d managers, expected at most 2", len(pf.Managers))
	}
	for i, m := range pf.Managers {
		if i == 0 {
			setStr(&c.Manager1Name, m.Name)
			setStr(&c.Manager1Wallet, m.WalletID)
			setInt(&c.Manager1Rate, m.Rate)
		} else {
			setStr(&c.Manager2Name, m.Name)
			setStr(&c.Manager2Wallet, m.WalletID)
			setInt(&c.Manager2Rate, m.Rate)
		}
	}

	setStr(&c.FactoryName, pf.Factory.Name)
	setStr(&c.FactoryWallet, pf.Factory.WalletID)
	if len(pf.TriggerKinds) > 0 {
		c.TriggerKinds = pf.TriggerKinds
	}
	return nil
}

// Plan freezes the configured rates and wallets.
func (c CommissionConfig) Plan() (commission.Plan, error) {
	return commission.NewPlan(commission.PlanConfig{
		N1Rate:        c.N1Rate,
		N2Rate:        c.N2Rate,
		N3Rate:        c.N3Rate,
		Manager1:      commission.Manager{Name: c.Manager1Name, WalletID: c.Manager1Wallet, Rate: c.Manager1Rate},
		Manager2:      commission.Manager{Name: c.Manager2Name, WalletID: c.Manager2Wallet, Rate: c.Manager2Rate},
		FactoryName:   c.FactoryName,
		FactoryWallet: c.FactoryWallet,
	})
}
