package domain

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	FeatureAdvancedReporting = "advancedReporting"
	FeatureAPIAccess         = "apiAccess"
	FeatureAdvancedFeatures  = "advancedFeatures"
)

//go:embed tiers.yaml
var defaultTiers []byte

type TierPlan struct {
	MaxUsers int             `yaml:"maxUsers"`
	Features map[string]bool `yaml:"features"`
}

// TierMatrix maps each subscription tier to its plan.
type TierMatrix struct {
	Tiers map[Tier]TierPlan `yaml:"tiers"`
}

// FeatureSet is the resolved gate set for one organization.
type FeatureSet struct {
	AdvancedReporting bool `json:"advancedReporting"`
	APIAccess         bool `json:"apiAccess"`
	AdvancedFeatures  bool `json:"advancedFeatures"`
}

// LoadTiers parses the embedded tier matrix.
func LoadTiers() (TierMatrix, error) {
	return ParseTiers(defaultTiers)
}

func ParseTiers(raw []byte) (TierMatrix, error) {
	var m TierMatrix
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return TierMatrix{}, fmt.Errorf("parse tier matrix: %w", err)
	}
	if _, ok := m.Tiers[TierFree]; !ok {
		return TierMatrix{}, fmt.Errorf("parse tier matrix: %q tier is required", TierFree)
	}
	return m, nil
}

// Plan returns the plan for tier, falling back to the free plan.
func (m TierMatrix) Plan(tier Tier) TierPlan {
	if plan, ok := m.Tiers[tier]; ok {
		return plan
	}
	return m.Tiers[TierFree]
}

// Features applies the organization's explicit overrides on top of its tier.
func (m TierMatrix) Features(org Organization) FeatureSet {
	plan := m.Plan(org.SubscriptionTier)
	gate := func(name string) bool {
		if v, ok := org.Features[name]; ok {
			return v
		}
		return plan.Features[name]
	}
	return FeatureSet{
		AdvancedReporting: gate(FeatureAdvancedReporting),
		APIAccess:         gate(FeatureAPIAccess),
		AdvancedFeatures:  gate(FeatureAdvancedFeatures),
	}
}
