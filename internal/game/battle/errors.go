package battle

import "errors"

var (
	// ErrNoCurrentBattle is returned when a battle-scoped step runs with no conflict selected.
	ErrNoCurrentBattle = errors.New("no current battle")
	// ErrUnknownSubPhase is returned when the router meets a sub-phase it cannot dispatch.
	ErrUnknownSubPhase = errors.New("unknown battle sub-phase")
	// ErrInvalidPlan wraps every reason a submitted battle plan is refused.
	ErrInvalidPlan = errors.New("invalid battle plan")
	// ErrInvalidBattle indicates a queued battle that no longer matches the board.
	ErrInvalidBattle = errors.New("invalid pending battle")
)
