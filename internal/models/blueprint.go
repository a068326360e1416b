package models

import (
	"encoding/json"
	"time"
)

// Blueprint is an organization's strategic reference used for alignment scoring.
type Blueprint struct {
	ID             string    `bson:"_id" json:"id"`
	OrganizationID string    `bson:"organizationId" json:"organizationId"`
	Vision         string    `bson:"vision" json:"vision"`
	Mission        string    `bson:"mission" json:"mission"`
	Values         []string  `bson:"values" json:"values"`
	Objectives     []string  `bson:"objectives" json:"objectives"`
	Pillars        []string  `bson:"pillars" json:"pillars"`
	TaxonomyTerms  []string  `bson:"taxonomyTerms" json:"taxonomyTerms"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// BlueprintPatch is a merge-update; nil fields are left untouched.
type BlueprintPatch struct {
	Vision        *string   `json:"vision,omitempty"`
	Mission       *string   `json:"mission,omitempty"`
	Values        *[]string `json:"values,omitempty"`
	Objectives    *[]string `json:"objectives,omitempty"`
	Pillars       *[]string `json:"pillars,omitempty"`
	TaxonomyTerms *[]string `json:"taxonomyTerms,omitempty"`
}

// Empty reports whether the patch sets nothing.
func (p BlueprintPatch) Empty() bool {
	return p.Vision == nil && p.Mission == nil && p.Values == nil && p.Objectives == nil && p.Pillars == nil && p.TaxonomyTerms == nil
}

// Apply merges p into b.
func (p BlueprintPatch) Apply(b *Blueprint) {
	if p.Vision != nil {
		b.Vision = *p.Vision
	}
	if p.Mission != nil {
		b.Mission = *p.Mission
	}
	if p.Values != nil {
		b.Values = *p.Values
	}
	if p.Objectives != nil {
		b.Objectives = *p.Objectives
	}
	if p.Pillars != nil {
		b.Pillars = *p.Pillars
	}
	if p.TaxonomyTerms != nil {
		b.TaxonomyTerms = *p.TaxonomyTerms
	}
}

// Serialize renders the strategic fields as the JSON document sent to the scorer.
func (b *Blueprint) Serialize() (string, error) {
	out, err := json.Marshal(struct {
		Vision        string   `json:"vision"`
		Mission       string   `json:"mission"`
		Values        []string `json:"values"`
		Objectives    []string `json:"objectives"`
		Pillars       []string `json:"pillars"`
		TaxonomyTerms []string `json:"taxonomyTerms"`
	}{b.Vision, b.Mission, nonNil(b.Values), nonNil(b.Objectives), nonNil(b.Pillars), nonNil(b.TaxonomyTerms)})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// IsBlank reports whether no strategic field carries content.
func (b *Blueprint) IsBlank() bool {
	return b.Vision == "" && b.Mission == "" && len(b.Values) == 0 && len(b.Objectives) == 0 && len(b.Pillars) == 0 && len(b.TaxonomyTerms) == 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
