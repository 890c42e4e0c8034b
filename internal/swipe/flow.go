// Package swipe implements the weekly recommendation swipe flow.
//
// A Flow is a pure value: an ordered batch and the index of the current card. Like and pass both advance the index
// by one, clamped to the batch length. The flow never moves backwards and never wraps.
package swipe

import (
	"errors"

	"github.com/Proton-105/sohaeng-web/internal/domain"
)

// Phase is the rendering state of a flow.
type Phase string

const (
	// PhaseEmpty means the batch had no candidates from the start.
	PhaseEmpty Phase = "empty"
	// PhaseBrowsing means a current card exists.
	PhaseBrowsing Phase = "browsing"
	// PhaseExhausted means every card was answered; the view asks to come back next week.
	PhaseExhausted Phase = "exhausted"
)

// Action is a viewer's answer to the current card.
type Action string

const (
	ActionLike Action = "like"
	ActionPass Action = "pass"
)

var (
	// ErrNoCurrentCard is returned when acting on an empty or exhausted flow.
	ErrNoCurrentCard = errors.New("no current recommendation")
	// ErrUnknownAction is returned for anything but like or pass.
	ErrUnknownAction = errors.New("unknown swipe action")
)

// ParseAction validates a form value.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionLike, ActionPass:
		return Action(s), nil
	default:
		return "", ErrUnknownAction
	}
}

// EffectKind tells the caller what to emit for a transition.
type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectSendLike
)

// Effect is the outbound side effect of one transition.
type Effect struct {
	Kind EffectKind
	Like domain.LikePayload
}

// Flow is the swipe state over one batch.
type Flow struct {
	Week  string
	Items []domain.RecommendationItem
	Index int
}

// NewFlow starts a flow at the first card.
func NewFlow(week string, items []domain.RecommendationItem) Flow {
	return Flow{Week: week, Items: items}
}

// PhaseOf derives the phase from a length and an index.
func PhaseOf(length, index int) Phase {
	switch {
	case length == 0:
		return PhaseEmpty
	case index >= length:
		return PhaseExhausted
	default:
		return PhaseBrowsing
	}
}

func (f Flow) Phase() Phase {
	return PhaseOf(len(f.Items), f.Index)
}

// Current returns the card on screen.
func (f Flow) Current() (domain.RecommendationItem, bool) {
	if f.Phase() != PhaseBrowsing {
		return domain.RecommendationItem{}, false
	}
	return f.Items[f.Index], true
}

// Remaining counts the cards not answered yet, including the current one.
func (f Flow) Remaining() int {
	if f.Index >= len(f.Items) {
		return 0
	}
	return len(f.Items) - f.Index
}

// Position is the 1-based number of the current card, for "3 / 10" counters.
func (f Flow) Position() int {
	if f.Index >= len(f.Items) {
		return len(f.Items)
	}
	return f.Index + 1
}

// Apply answers the current card. The returned effect must be emitted exactly once by the caller.
func (f Flow) Apply(a Action) (Flow, Effect, error) {
	if a != ActionLike && a != ActionPass {
		return f, Effect{}, ErrUnknownAction
	}

	current, ok := f.Current()
	if !ok {
		return f, Effect{}, ErrNoCurrentCard
	}

	effect := Effect{Kind: EffectNone}
	if a == ActionLike {
		batchWeek := current.BatchWeek
		if batchWeek == "" {
			batchWeek = f.Week
		}
		effect = Effect{
			Kind: EffectSendLike,
			Like: domain.LikePayload{ToUserID: current.TargetUserID, BatchWeek: batchWeek},
		}
	}

	next := f
	next.Index = clamp(f.Index+1, len(f.Items))

	return next, effect, nil
}

// WithIndex restores a persisted position, clamped to the batch.
func (f Flow) WithIndex(index int) Flow {
	if index < 0 {
		index = 0
	}
	f.Index = clamp(index, len(f.Items))
	return f
}

func clamp(index, length int) int {
	if index > length {
		return length
	}
	return index
}
