package battle

import (
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

var voiceCards = []string{
	VoiceClassWeapon, VoiceClassDefense,
	string(state.CardProjectileWeapon), string(state.CardPoisonWeapon), string(state.CardLasgun),
	string(state.CardShield), string(state.CardSnooper),
	string(state.CardCheapHero), string(state.CardWorthless),
}

func (h *Handler) enterVoice(st *step) (bool, error) {
	ctx := st.s.Current
	voicer, target, ok := abilityHolder(st.s.Game, ctx, state.Faction.HasVoice)
	if !ok {
		return false, nil
	}
	ctx.Phase = VoiceOpportunity{Voicer: voicer, Target: target}
	return true, nil
}

func (h *Handler) voiceRequest(ctx *BattleContext, p VoiceOpportunity) rules.Request {
	return rules.Request{
		FactionID:   p.Voicer,
		RequestType: rules.RequestUseVoice,
		Prompt:      "Use the Voice on " + p.Target.String() + "?",
		Context: map[string]any{
			"territory": string(ctx.Battle.Territory),
			"target":    string(p.Target),
			"modes":     []string{string(VoicePlay), string(VoiceNotPlay)},
			"cards":     voiceCards,
		},
		AvailableActions: []rules.ActionType{rules.ActionUseVoice, rules.ActionPass},
	}
}

func (h *Handler) respondVoice(st *step, p VoiceOpportunity, matched map[state.Faction]rules.Response) error {
	resp, ok := matched[p.Voicer]
	if !ok {
		return nil
	}
	ctx := st.s.Current
	if !resp.Passed {
		var payload voicePayload
		err := decodeData(resp.Data, &payload)
		mode := VoiceMode(payload.Mode)
		switch {
		case err != nil:
			h.ignore(st, resp, err.Error())
		case mode != VoicePlay && mode != VoiceNotPlay:
			h.ignore(st, resp, "unknown voice mode "+payload.Mode)
		case !validVoiceCard(payload.Card):
			h.ignore(st, resp, "unknown voice card "+payload.Card)
		default:
			ctx.Voice = &VoiceCommand{Voicer: p.Voicer, Target: p.Target, Mode: mode, Card: payload.Card}
			st.emit(battleEvent(ctx, rules.EventVoiceUsed, p.Voicer,
				"%s commands %s: %s %s", p.Voicer, p.Target, mode, payload.Card).
				With("target", string(p.Target)).
				With("mode", string(mode)).
				With("card", payload.Card))
			return h.advance(st, NameVoiceOpportunity)
		}
	}
	st.emit(battleEvent(ctx, rules.EventVoiceDeclined, p.Voicer, "%s does not use the Voice", p.Voicer))
	return h.advance(st, NameVoiceOpportunity)
}
