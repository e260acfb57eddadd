package battle

import (
	"errors"

	"github.com/arrakis-sim/dune-server-go/internal/game/combat"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"go.uber.org/zap"
)

var prescienceElements = []string{
	string(ElementLeader), string(ElementWeapon), string(ElementDefense), string(ElementForces),
}

func (h *Handler) enterPrescience(st *step) (bool, error) {
	ctx := st.s.Current
	seer, target, ok := abilityHolder(st.s.Game, ctx, state.Faction.HasPrescience)
	if !ok {
		return false, nil
	}
	ctx.Phase = PrescienceOpportunity{Seer: seer, Target: target}
	return true, nil
}

func (h *Handler) prescienceRequest(ctx *BattleContext, p PrescienceOpportunity) rules.Request {
	if p.Element == "" {
		return rules.Request{
			FactionID:   p.Seer,
			RequestType: rules.RequestUsePrescience,
			Prompt:      "Use prescience on " + p.Target.String() + "?",
			Context: map[string]any{
				"territory": string(ctx.Battle.Territory),
				"target":    string(p.Target),
				"elements":  prescienceElements,
			},
			AvailableActions: []rules.ActionType{rules.ActionUsePrescience, rules.ActionPass},
		}
	}
	return rules.Request{
		FactionID:   p.Target,
		RequestType: rules.RequestRevealPrescience,
		Prompt:      "Reveal your " + string(p.Element) + " to " + p.Seer.String(),
		Context: map[string]any{
			"territory": string(ctx.Battle.Territory),
			"seer":      string(p.Seer),
			"element":   string(p.Element),
		},
		AvailableActions: []rules.ActionType{rules.ActionRevealPrescience, rules.ActionPass},
	}
}

func (h *Handler) respondPrescience(st *step, p PrescienceOpportunity, matched map[state.Faction]rules.Response) error {
	if p.Element == "" {
		return h.respondPrescienceChoice(st, p, matched)
	}
	return h.respondPrescienceReveal(st, p, matched)
}

func (h *Handler) respondPrescienceChoice(st *step, p PrescienceOpportunity, matched map[state.Faction]rules.Response) error {
	resp, ok := matched[p.Seer]
	if !ok {
		return nil
	}
	ctx := st.s.Current
	if !resp.Passed {
		var payload presciencePayload
		err := decodeData(resp.Data, &payload)
		element := PrescienceElement(payload.Element)
		switch {
		case err != nil:
			h.ignore(st, resp, err.Error())
		case !validElement(element):
			h.ignore(st, resp, "unknown prescience element "+payload.Element)
		default:
			st.emit(battleEvent(ctx, rules.EventPrescienceUsed, p.Seer,
				"%s asks %s to reveal its %s", p.Seer, p.Target, element).
				With("target", string(p.Target)).
				With("element", string(element)))
			p.Element = element
			ctx.Phase = p
			return nil
		}
	}
	st.emit(battleEvent(ctx, rules.EventPrescienceDeclined, p.Seer, "%s does not use prescience", p.Seer))
	return h.advance(st, NamePrescienceOpportunity)
}

func (h *Handler) respondPrescienceReveal(st *step, p PrescienceOpportunity, matched map[state.Faction]rules.Response) error {
	resp, ok := matched[p.Target]
	if !ok {
		return nil
	}
	ctx := st.s.Current
	binding := PrescienceBinding{Seer: p.Seer, Target: p.Target, Element: p.Element}

	var revealed combat.Plan
	if !resp.Passed {
		if err := decodeData(resp.Data, &revealed); err != nil {
			h.ignore(st, resp, err.Error())
			resp = rules.Pass(p.Target)
		}
	}
	if resp.Passed {
		ctx.Prescience = &binding
		st.emit(battleEvent(ctx, rules.EventPrescienceDeclined, p.Target,
			"%s does not reveal its %s; the element stays unbound", p.Target, p.Element).
			With("element", string(p.Element)))
		return h.advance(st, NamePrescienceOpportunity)
	}

	revealed.Faction = p.Target
	binding.Bound = true
	binding.Revealed = onlyElement(revealed, p.Element)

	if err := h.validateElement(st.s.Game, ctx, binding); err != nil {
		h.reject(st, p.Target, err)
		return nil
	}
	ctx.Prescience = &binding
	st.emit(battleEvent(ctx, rules.EventPrescienceRevealed, p.Target,
		"%s reveals its %s to %s", p.Target, p.Element, p.Seer).
		With("element", string(p.Element)).
		With("revealed", elementSummary(binding)))
	return h.advance(st, NamePrescienceOpportunity)
}

// onlyElement clears every plan field except those of the element.
func onlyElement(p combat.Plan, element PrescienceElement) combat.Plan {
	b := PrescienceBinding{Element: element, Bound: true, Revealed: p}
	return b.Apply(combat.Plan{Faction: p.Faction})
}

func elementSummary(b PrescienceBinding) map[string]any {
	switch b.Element {
	case ElementLeader:
		return map[string]any{"leader_id": b.Revealed.LeaderID, "cheap_hero_id": b.Revealed.CheapHeroID}
	case ElementWeapon:
		return map[string]any{"weapon_id": b.Revealed.WeaponID}
	case ElementDefense:
		return map[string]any{"defense_id": b.Revealed.DefenseID}
	case ElementForces:
		return map[string]any{"forces": b.Revealed.Forces, "elite_forces": b.Revealed.EliteForces}
	}
	return nil
}

// reject logs a refused action; the same request stays pending.
func (h *Handler) reject(st *step, f state.Faction, err error) {
	ctx := st.s.Current
	reason := err.Error()
	if !errors.Is(err, ErrInvalidPlan) {
		reason = ErrInvalidPlan.Error() + ": " + reason
	}
	h.logger.Info("plan rejected", zap.String("faction", f.String()), zap.String("reason", reason))
	st.emit(battleEvent(ctx, rules.EventPlanRejected, f, "%s", reason).With("reason", reason))
}
