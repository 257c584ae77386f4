package workflow

import (
	"fmt"
	"math"
)

// RuleKind tags the variant held by a RoutingRule.
type RuleKind int

const (
	ruleUnset RuleKind = iota
	// RuleUnconditional always proceeds to Next.
	RuleUnconditional
	// RuleThresholded compares a score slot against Threshold.
	RuleThresholded
	// RuleTerminal ends the run successfully.
	RuleTerminal
)

func (k RuleKind) String() string {
	switch k {
	case RuleUnconditional:
		return "unconditional"
	case RuleThresholded:
		return "thresholded"
	case RuleTerminal:
		return "terminal"
	default:
		return "unset"
	}
}

// Scorer is implemented by slot values that a Thresholded rule can read.
type Scorer interface {
	Score() float64
}

// RoutingRule is the declarative transition attached to a graph node.
// Construct it with Unconditional, Thresholded or Terminal.
type RoutingRule struct {
	Kind RuleKind `json:"kind"`

	Next PhaseID `json:"next,omitempty"`

	ScoreField Slot    `json:"score_field,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	OnMeet     PhaseID `json:"on_meet,omitempty"`
	OnMiss     PhaseID `json:"on_miss,omitempty"`
}

// Unconditional routes to next.
func Unconditional(next PhaseID) RoutingRule {
	return RoutingRule{Kind: RuleUnconditional, Next: next}
}

// Thresholded routes to onMeet when the score held in field is at least
// threshold, and to onMiss otherwise.
func Thresholded(field Slot, threshold float64, onMeet, onMiss PhaseID) RoutingRule {
	return RoutingRule{
		Kind:       RuleThresholded,
		ScoreField: field,
		Threshold:  threshold,
		OnMeet:     onMeet,
		OnMiss:     onMiss,
	}
}

// Terminal routes to End.
func Terminal() RoutingRule {
	return RoutingRule{Kind: RuleTerminal}
}

// Targets lists every id the rule can route to.
func (r RoutingRule) Targets() []PhaseID {
	switch r.Kind {
	case RuleUnconditional:
		return []PhaseID{r.Next}
	case RuleThresholded:
		return []PhaseID{r.OnMeet, r.OnMiss}
	case RuleTerminal:
		return []PhaseID{End}
	default:
		return nil
	}
}

// Meets reports whether score clears the rule's threshold. Inclusive.
func (r RoutingRule) Meets(score float64) bool {
	return score >= r.Threshold
}

// Resolve evaluates the rule against a merged State. The implicit error edge is
// the engine's concern and is not consulted here.
func (r RoutingRule) Resolve(s State) (PhaseID, error) {
	switch r.Kind {
	case RuleUnconditional:
		return r.Next, nil
	case RuleTerminal:
		return End, nil
	case RuleThresholded:
		v, ok := s.Get(r.ScoreField)
		if !ok {
			return "", routingError(
				fmt.Sprintf("score slot %q is empty", r.ScoreField), ErrNoRoute)
		}
		scorer, ok := v.(Scorer)
		if !ok {
			return "", routingError(
				fmt.Sprintf("slot %q holds %T which carries no score", r.ScoreField, v), ErrNoRoute)
		}
		if r.Meets(scorer.Score()) {
			return r.OnMeet, nil
		}
		return r.OnMiss, nil
	default:
		return "", routingError("routing rule has no kind", ErrInvalidRule)
	}
}

func (r RoutingRule) validate() error {
	switch r.Kind {
	case RuleUnconditional:
		if r.Next == "" {
			return fmt.Errorf("%w: unconditional rule without target", ErrInvalidRule)
		}
	case RuleThresholded:
		if !r.ScoreField.Valid() {
			return fmt.Errorf("%w: score field %q", ErrUnknownSlot, r.ScoreField)
		}
		if r.OnMeet == "" || r.OnMiss == "" {
			return fmt.Errorf("%w: thresholded rule needs both targets", ErrInvalidRule)
		}
		if math.IsNaN(r.Threshold) || r.Threshold < 0 || r.Threshold > 100 {
			return fmt.Errorf("%w: threshold %.2f outside 0..100", ErrInvalidRule, r.Threshold)
		}
	case RuleTerminal:
	default:
		return fmt.Errorf("%w: kind unset", ErrInvalidRule)
	}
	return nil
}

// relink rewrites every target through fn.
func (r RoutingRule) relink(fn func(PhaseID) PhaseID) RoutingRule {
	switch r.Kind {
	case RuleUnconditional:
		r.Next = fn(r.Next)
	case RuleThresholded:
		r.OnMeet = fn(r.OnMeet)
		r.OnMiss = fn(r.OnMiss)
	}
	return r
}

func (r RoutingRule) String() string {
	switch r.Kind {
	case RuleUnconditional:
		return fmt.Sprintf("unconditional(%s)", r.Next)
	case RuleThresholded:
		return fmt.Sprintf("thresholded(%s >= %.2f ? %s : %s)", r.ScoreField, r.Threshold, r.OnMeet, r.OnMiss)
	case RuleTerminal:
		return "terminal"
	default:
		return "unset"
	}
}
