package model

import "time"

// Environment is a named stage in the promotion chain.
type Environment string

const (
	EnvSandbox Environment = "sandbox"
	EnvDev     Environment = "dev"
	EnvPreprod Environment = "preprod"
	EnvProd    Environment = "prod"
)

// EnvironmentChain is the default promotion order. Gates may be defined for
// any (source, target) pair; the chain only drives "next stage" derivation.
var EnvironmentChain = []Environment{EnvSandbox, EnvDev, EnvPreprod, EnvProd}

// String returns the string representation of the environment.
func (e Environment) String() string {
	return string(e)
}

// IsValid checks whether the environment is a known stage.
func (e Environment) IsValid() bool {
	for _, env := range EnvironmentChain {
		if e == env {
			return true
		}
	}
	return false
}

// NextEnvironment returns the stage that follows e in the promotion chain,
// or "" when e is the last stage or unknown.
func NextEnvironment(e Environment) Environment {
	for i, env := range EnvironmentChain {
		if env == e && i+1 < len(EnvironmentChain) {
			return EnvironmentChain[i+1]
		}
	}
	return ""
}

// Project is an artifact under staged promotion.
type Project struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	CurrentEnvironment Environment `json:"current_environment"`
	AIEnabled          bool        `json:"ai_enabled"`

	// Attestations maps control IDs to attested flags. A nil value means
	// "not yet attested either way". Opaque to the core; rule predicates
	// interpret individual keys.
	Attestations map[string]*bool `json:"attestations,omitempty"`

	// ScanScores holds the latest score per integration (e.g. SAST, SCA).
	ScanScores map[string]float64 `json:"scan_scores,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
