package battle

import (
	"slices"

	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

func (h *Handler) enterDiscard(st *step) (bool, error) {
	ctx := st.s.Current
	res := ctx.Result
	if res == nil || !res.HasWinner() {
		return false, nil
	}
	winner, _ := res.WinnerSide()
	fs, ok := st.s.Game.Faction(res.Winner)
	if !ok {
		return false, nil
	}
	var held []state.Card
	for _, c := range winner.Keep {
		if _, ok := fs.Card(c.ID); ok {
			held = append(held, c)
		}
	}
	if len(held) == 0 {
		return false, nil
	}
	ctx.Phase = WinnerCardDiscard{Winner: res.Winner, Cards: held}
	return true, nil
}

func (h *Handler) discardRequest(ctx *BattleContext, p WinnerCardDiscard) rules.Request {
	cards := make([]map[string]any, 0, len(p.Cards))
	for _, c := range p.Cards {
		cards = append(cards, map[string]any{"id": c.ID, "name": c.Name, "kind": string(c.Kind)})
	}
	return rules.Request{
		FactionID:   p.Winner,
		RequestType: rules.RequestChooseCardDiscard,
		Prompt:      "Choose which of your played cards to discard",
		Context: map[string]any{
			"territory": string(ctx.Battle.Territory),
			"cards":     cards,
		},
		AvailableActions: []rules.ActionType{rules.ActionDiscardCards, rules.ActionKeepCards, rules.ActionPass},
	}
}

func (h *Handler) respondDiscard(st *step, p WinnerCardDiscard, matched map[state.Faction]rules.Response) error {
	resp, ok := matched[p.Winner]
	if !ok {
		return nil
	}
	ctx := st.s.Current

	var chosen []string
	if !resp.Passed && resp.ActionType == rules.ActionDiscardCards {
		var payload discardPayload
		if err := decodeData(resp.Data, &payload); err != nil {
			h.ignore(st, resp, err.Error())
		} else {
			for _, c := range p.Cards {
				if slices.Contains(payload.CardIDs, c.ID) {
					chosen = append(chosen, c.ID)
				}
			}
		}
	}

	fs, discarded := st.s.Game.Factions[p.Winner].WithoutCards(chosen...)
	st.s.Game = st.s.Game.WithFaction(fs).Discard(discarded...)
	for _, c := range p.Cards {
		if slices.Contains(chosen, c.ID) {
			st.emit(battleEvent(ctx, rules.EventCardDiscarded, p.Winner,
				"%s discards %s", p.Winner, c.Name).With("card_id", c.ID))
			continue
		}
		st.emit(battleEvent(ctx, rules.EventCardKept, p.Winner,
			"%s keeps %s", p.Winner, c.Name).With("card_id", c.ID))
	}
	return h.advance(st, NameWinnerCardDiscard)
}
