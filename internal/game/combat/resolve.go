package combat

import "github.com/arrakis-sim/dune-server-go/internal/game/state"

// Resolve computes the outcome of the battle. The evaluation order is fixed:
// two traitors, then a single traitor, then a lasgun/shield explosion, then
// the normal strength comparison.
func Resolve(in Input) Result {
	res := Result{
		Territory: in.Territory,
		Sector:    in.Sector,
		Aggressor: SideResult{Faction: in.Aggressor.Faction, LeaderID: in.Aggressor.Plan.LeaderID},
		Defender:  SideResult{Faction: in.Defender.Faction, LeaderID: in.Defender.Plan.LeaderID},
	}

	switch {
	case in.Traitors.AggressorCalled && in.Traitors.DefenderCalled:
		resolveMutualLoss(in, &res, OutcomeTwoTraitors)
	case in.Traitors.AggressorCalled:
		resolveTraitor(in.Aggressor, in.Defender, &res, &res.Aggressor, &res.Defender)
	case in.Traitors.DefenderCalled:
		resolveTraitor(in.Defender, in.Aggressor, &res, &res.Defender, &res.Aggressor)
	case isExplosion(in.Aggressor, in.Defender):
		resolveMutualLoss(in, &res, OutcomeLasgunExplosion)
		res.Aggressor.KwisatzHaderachKilled = in.Aggressor.Plan.KwisatzHaderach
		res.Defender.KwisatzHaderachKilled = in.Defender.Plan.KwisatzHaderach
	default:
		resolveNormal(in, &res)
	}
	return res
}

func isExplosion(a, d Side) bool {
	lasgun := a.Weapon.Kind == state.CardLasgun || d.Weapon.Kind == state.CardLasgun
	shield := a.Defense.Kind == state.CardShield || d.Defense.Kind == state.CardShield
	return lasgun && shield
}

// loseEverything marks all present forces, the leader and the played cards as lost.
func loseEverything(side Side, out *SideResult) {
	out.RegularLost = side.RegularPresent
	out.EliteLost = side.ElitePresent
	out.LeaderKilled = side.HasLeader()
	out.SpicePaid = side.Plan.Spice
	out.Discard = side.Cards()
	out.Keep = nil
}

// resolveMutualLoss leaves no winner: both sides lose everything.
func resolveMutualLoss(in Input, res *Result, outcome Outcome) {
	res.Outcome = outcome
	loseEverything(in.Aggressor, &res.Aggressor)
	loseEverything(in.Defender, &res.Defender)
}

func resolveTraitor(caller, betrayed Side, res *Result, callerOut, betrayedOut *SideResult) {
	res.Outcome = OutcomeTraitor
	res.Winner = caller.Faction
	res.Loser = betrayed.Faction
	res.TraitorLeaderID = betrayed.Plan.LeaderID

	// The caller loses nothing and is paid for the traitor leader.
	callerOut.SpiceReceived = betrayed.LeaderStrength
	callerOut.Discard, callerOut.Keep = splitWinnerCards(caller.Cards())
	loseEverything(betrayed, betrayedOut)
}

func resolveNormal(in Input, res *Result) {
	res.Outcome = OutcomeNormal
	a, d := in.Aggressor, in.Defender

	res.Aggressor.LeaderKilled = leaderKilled(a, d)
	res.Defender.LeaderKilled = leaderKilled(d, a)
	res.Aggressor.Total = Strength(a, res.Aggressor.LeaderKilled, in.Rules)
	res.Defender.Total = Strength(d, res.Defender.LeaderKilled, in.Rules)

	winner, loser := a, d
	winOut, loseOut := &res.Aggressor, &res.Defender
	// Ties go to the aggressor.
	if res.Defender.Total > res.Aggressor.Total {
		winner, loser = d, a
		winOut, loseOut = &res.Defender, &res.Aggressor
	}
	res.Winner = winner.Faction
	res.Loser = loser.Faction

	winOut.RegularLost = min(winner.Plan.Forces, winner.RegularPresent)
	winOut.EliteLost = min(winner.Plan.EliteForces, winner.ElitePresent)
	winOut.SpicePaid = winner.Plan.Spice
	winOut.Discard, winOut.Keep = splitWinnerCards(winner.Cards())

	killed := loseOut.LeaderKilled
	loseEverything(loser, loseOut)
	loseOut.LeaderKilled = killed

	winOut.SpiceReceived = killedStrength(a, res.Aggressor) + killedStrength(d, res.Defender)
}

// leaderKilled reports whether side's leader falls to the opponent's weapon.
func leaderKilled(side, opponent Side) bool {
	if !side.HasLeader() || opponent.Weapon.ID == "" {
		return false
	}
	if !opponent.Weapon.Kind.IsWeapon() {
		return false
	}
	return !state.Counters(opponent.Weapon.Kind, side.Defense.Kind)
}

func killedStrength(side Side, out SideResult) int {
	if out.LeaderKilled {
		return side.LeaderStrength
	}
	return 0
}

// Strength returns the side's battle total given whether its leader survived.
func Strength(side Side, leaderDead bool, rules Rules) float64 {
	total := DialedStrength(side, rules)
	if leaderDead {
		return total
	}
	total += float64(side.LeaderStrength)
	if side.Plan.KwisatzHaderach {
		total += KwisatzHaderachBonus
	}
	return total
}

// DialedStrength returns the value of the forces dialed. Under advanced combat
// each spice supports one token, elites first; unsupported tokens count half.
func DialedStrength(side Side, rules Rules) float64 {
	eliteValue := side.EliteValue
	if eliteValue <= 0 {
		eliteValue = 2
	}
	regular := float64(side.Plan.Forces)
	elite := float64(side.Plan.EliteForces * eliteValue)
	if !rules.AdvancedCombat || !side.NeedsSpice {
		return regular + elite
	}

	spice := side.Plan.Spice
	supportedElite := min(side.Plan.EliteForces, spice)
	supportedRegular := min(side.Plan.Forces, spice-supportedElite)

	total := float64(supportedElite*eliteValue) + float64(side.Plan.EliteForces-supportedElite)*float64(eliteValue)/2
	total += float64(supportedRegular) + float64(side.Plan.Forces-supportedRegular)/2
	return total
}

// splitWinnerCards keeps every card except those always discarded after use.
func splitWinnerCards(cards []state.Card) (discard, keep []state.Card) {
	for _, c := range cards {
		if c.Kind.AlwaysDiscard() {
			discard = append(discard, c)
			continue
		}
		keep = append(keep, c)
	}
	return discard, keep
}
