package game

import (
	"errors"
	"fmt"
)

// Action is the closed set of things a player can ask the game to do.
type Action interface {
	isAction()
	// Name identifies the action kind in rejections, logs and records.
	Name() string
}

// Concede ends the game. It does not require priority.
type Concede struct{}

// PassPriority hands priority to the next player, or advances the phase or
// turn when every player has passed in succession.
type PassPriority struct{}

// PlayLand moves a land from the acting player's hand onto the battlefield.
type PlayLand struct {
	Object ID
}

// ActivateAbility activates one ability of an object.
type ActivateAbility struct {
	Object  ID
	Ability ID
}

func (Concede) isAction()         {}
func (PassPriority) isAction()    {}
func (PlayLand) isAction()        {}
func (ActivateAbility) isAction() {}

func (Concede) Name() string         { return "CONCEDE" }
func (PassPriority) Name() string    { return "PASS_PRIORITY" }
func (PlayLand) Name() string        { return "PLAY_LAND" }
func (ActivateAbility) Name() string { return "ACTIVATE_ABILITY" }

// Reason describes why an action was not allowed.
type Reason string

const (
	ReasonGameOver          Reason = "game unable to accept actions at this time"
	ReasonUnknownPlayer     Reason = "player is not part of this game"
	ReasonNoPriority        Reason = "no player has priority"
	ReasonNotPriorityHolder Reason = "player does not have priority"
	ReasonObjectNotFound    Reason = "object not found"
	ReasonNotInHand         Reason = "land not in player's hand"
	ReasonNotALand          Reason = "object is not a land"
	ReasonNotController     Reason = "player does not control this object"
	ReasonAbilityNotFound   Reason = "ability not found on object"
	ReasonZoneNotFound      Reason = "could not find object's zone"
	ReasonNotOnBattlefield  Reason = "object not on battlefield"
	ReasonCannotTap         Reason = "object cannot be tapped"
	ReasonAlreadyTapped     Reason = "object already tapped"
)

// ActionError is the single rejection kind: the action was not allowed and
// the game state is unchanged.
type ActionError struct {
	Action string
	Reason Reason
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s not allowed: %s", e.Action, e.Reason)
}

func notAllowed(action Action, reason Reason) error {
	return &ActionError{Action: action.Name(), Reason: reason}
}

// IsNotAllowed reports whether err is an action rejection.
func IsNotAllowed(err error) bool {
	var actionErr *ActionError
	return errors.As(err, &actionErr)
}

// RejectionReason extracts the reason from an action rejection.
func RejectionReason(err error) (Reason, bool) {
	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Reason, true
	}
	return "", false
}
