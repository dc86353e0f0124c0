// internal/profile/profile.go

// Package profile loads a party's preference profile from YAML.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	engine "github.com/jason-s-yu/negotiator/engine"
	"gopkg.in/yaml.v3"
)

// ErrNoIssues is returned for a profile that declares no issues.
var ErrNoIssues = errors.New("profile declares no issues")

// Profile is the on-disk preference profile: a domain plus the owner's
// additive weights and per-value evaluations.
type Profile struct {
	Name   string         `yaml:"name"`
	Domain string         `yaml:"domain"`
	Issues []IssueProfile `yaml:"issues"`
}

// IssueProfile describes one issue. Values are listed in domain order.
type IssueProfile struct {
	Number int            `yaml:"number"`
	Name   string         `yaml:"name"`
	Weight float64        `yaml:"weight"`
	Values []ValueProfile `yaml:"values"`
}

// ValueProfile is one option with its unnormalized evaluation.
type ValueProfile struct {
	Value      engine.Value `yaml:"value"`
	Evaluation float64      `yaml:"evaluation"`
}

// Load reads and parses the profile at path.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a YAML profile. Unknown keys are rejected.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	if len(p.Issues) == 0 {
		return nil, ErrNoIssues
	}
	// Issue numbers default to their 1-based position.
	for i := range p.Issues {
		if p.Issues[i].Number == 0 {
			p.Issues[i].Number = i + 1
		}
	}
	return &p, nil
}

// BuildDomain builds the negotiation domain described by the profile.
func (p *Profile) BuildDomain() (*engine.Domain, error) {
	issues := make([]engine.Issue, 0, len(p.Issues))
	for _, ip := range p.Issues {
		values := make([]engine.Value, 0, len(ip.Values))
		for _, vp := range ip.Values {
			values = append(values, vp.Value)
		}
		issues = append(issues, engine.Issue{Number: ip.Number, Name: ip.Name, Values: values})
	}
	name := p.Domain
	if name == "" {
		name = p.Name
	}
	return engine.NewDomain(name, issues)
}

// UtilitySpace builds the domain and the owner's additive utility space over it.
func (p *Profile) UtilitySpace() (*engine.AdditiveUtilitySpace, error) {
	d, err := p.BuildDomain()
	if err != nil {
		return nil, err
	}
	weights := make(map[int]float64, len(p.Issues))
	evals := make(map[int]map[engine.Value]float64, len(p.Issues))
	for _, ip := range p.Issues {
		weights[ip.Number] = ip.Weight
		e := make(map[engine.Value]float64, len(ip.Values))
		for _, vp := range ip.Values {
			e[vp.Value] = vp.Evaluation
		}
		evals[ip.Number] = e
	}
	space, err := engine.NewAdditiveUtilitySpace(d, weights, evals)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return space, nil
}

// LoadSpace is Load followed by UtilitySpace.
func LoadSpace(path string) (*engine.AdditiveUtilitySpace, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	return p.UtilitySpace()
}
