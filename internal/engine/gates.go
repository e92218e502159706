package engine

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/gatewarden/internal/events"
	"github.com/alfredjeanlab/gatewarden/internal/idgen"
	"github.com/alfredjeanlab/gatewarden/internal/model"
	"github.com/alfredjeanlab/gatewarden/internal/rules"
)

// UpsertGate defines or replaces the promotion gate for a (source, target)
// pair. Rule types and parameters are validated against the catalog at
// definition time so evaluation never sees a malformed rule it could have
// rejected earlier.
func (s *GateServer) UpsertGate(ctx context.Context, g *model.PromotionGate, actor string) (*model.PromotionGate, error) {
	if err := model.ValidateGate(g); err != nil {
		return nil, inputError(err.Error())
	}
	for _, r := range g.Rules {
		if err := rules.ValidateRule(r); err != nil {
			return nil, inputError(fmt.Sprintf("rule %s: %v", r.RuleID, err))
		}
	}

	ts := now()
	existing, err := s.store.GetGate(ctx, g.SourceEnvironment, g.TargetEnvironment)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Keep the stable gate ID across redefinitions; historical
		// evaluations reference it.
		g.GateID = existing.GateID
		g.CreatedAt = existing.CreatedAt
	} else {
		if g.GateID == "" {
			g.GateID, err = idgen.Generate(idgen.PrefixGate)
			if err != nil {
				return nil, err
			}
		}
		g.CreatedAt = ts
	}
	g.UpdatedAt = ts

	if err := s.store.UpsertGate(ctx, g); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicGateConfigured, "", events.GateConfigured{Gate: g})

	return g, nil
}

// ListGates returns all configured gates.
func (s *GateServer) ListGates(ctx context.Context) ([]*model.PromotionGate, error) {
	return s.store.ListGates(ctx)
}

// RuleCatalog returns the catalog of known rule types.
func (s *GateServer) RuleCatalog() []rules.Info {
	return rules.List()
}
