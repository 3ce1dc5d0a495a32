package mind

import (
	"time"

	"github.com/keshon/heartflow/internal/config"
)

// Willingness blend weights. The blend is deterministic; the energy gate's
// dynamic threshold is the single bar both energy and willingness must clear.
const (
	willBaseWeight       = 0.3
	willInterestWeight   = 0.4
	willActivityWeight   = 0.2
	willContinuityWeight = 0.1
)

// Decision method labels, recorded for logging and stats.
const (
	MethodThreshold  = "threshold"
	MethodFocus      = "focus"
	MethodAirReading = "air_reading"
	MethodProactive  = "proactive"
)

// Decision is the orchestrator's verdict for one message or heartbeat tick,
// with the numbers it was made from.
type Decision struct {
	Reply       bool
	Reason      string
	Method      string
	Mode        Mode
	Interest    float64
	Continuity  float64
	Activity    float64
	Willingness float64
	Threshold   float64
	Impression  float64
	Fatigue     float64
	FocusEnter  bool
	FocusExit   string
}

// Decider folds interest, fatigue, energy and focus into a single verdict.
// All Decide methods assume the caller holds the group's lock.
type Decider struct {
	cfg     config.EngineConfig
	scorer  *InterestScorer
	fatigue *FatigueTracker
	energy  *EnergyController
	focus   *FocusManager
}

func NewDecider(cfg config.EngineConfig) *Decider {
	return &Decider{
		cfg:     cfg,
		scorer:  NewInterestScorer(cfg),
		fatigue: NewFatigueTracker(cfg),
		energy:  NewEnergyController(cfg),
		focus:   NewFocusManager(cfg),
	}
}

// Decide runs the reactive pipeline for one ingested message. impression is
// the stored 0..1 affinity for the sender (neutral 0.5 without a provider).
func (d *Decider) Decide(g *Group, msg Message, impression float64, now time.Time) Decision {
	st := &g.Engagement
	user := g.user(msg.UserID)
	snap := g.snapshot(now)
	continuity := ContinuitySimilarity(g.lastAgentReply, msg.Content)
	activityNorm := g.activity.Norm(time.Minute, now)

	dec := Decision{
		Mode:       d.focus.EffectiveMode(st, snap.Heat),
		Interest:   d.scorer.Evaluate(msg, user, snap, now),
		Continuity: continuity,
		Activity:   activityNorm,
		Impression: clamp01(impression),
		Fatigue:    d.fatigue.Level(user),
	}

	// Focus bookkeeping happens before any skip: timeouts and exhaustion
	// must clear the target even when this message is ignored.
	focusInterest := d.focus.FocusInterest(msg, impression, g.lastAgentReply)
	if exit, why := d.focus.ShouldExitFocus(st, &msg, focusInterest, now); exit {
		d.focus.ExitFocus(st, now)
		dec.FocusExit = why
	}

	// A quiet group is watched, not spoken into. A direct mention still
	// gets through; staying silent when addressed reads as a malfunction.
	if dec.Mode == ModeObservation && !msg.Mentioned {
		dec.Reason = "observation"
		return dec
	}

	if st.ConsecutiveReplies >= d.cfg.MaxConsecutiveReplies {
		dec.Reason = "consecutive_limit"
		return dec
	}

	if d.fatigue.IsFatigued(user) {
		dec.Reason = "rest"
		return dec
	}

	inFocusExchange := st.Mode == ModeFocused && st.FocusTarget == msg.UserID

	// Outside a focused exchange, sub-threshold interest ends it here
	// unless the agent was addressed directly.
	if !inFocusExchange && !msg.Mentioned && dec.Interest < d.cfg.InterestThreshold {
		dec.Reason = "low_interest"
		return dec
	}

	gate := d.energy.Gate(st, msg.Mentioned, activityNorm, continuity, now)
	dec.Threshold = gate.Threshold
	if !gate.Pass {
		dec.Reason = gate.Reason
		return dec
	}

	dec.Willingness = d.Willingness(dec.Interest, snap.Heat, continuity, user)
	if dec.Willingness < gate.Threshold {
		dec.Reason = "low_willingness"
		return dec
	}

	// Entering focus is decided only once the reply itself is decided, so a
	// gated-out burst of mentions cannot flip the mode without a response.
	effectiveFocus := focusInterest
	if dec.Interest > effectiveFocus {
		effectiveFocus = dec.Interest
	}
	if d.focus.MaybeEnterFocus(st, msg, effectiveFocus, now) {
		dec.FocusEnter = true
	}

	dec.Reply = true
	if inFocusExchange || dec.FocusEnter {
		dec.Method = MethodFocus
	} else {
		dec.Method = MethodThreshold
	}
	dec.Reason = "willing"
	return dec
}

// Willingness blends the decision inputs and subtracts the fatigue penalty.
// Clamped to [0,1].
func (d *Decider) Willingness(interest, activity, continuity float64, user *UserState) float64 {
	w := d.cfg.BaseProbability*willBaseWeight +
		interest*willInterestWeight +
		clamp01(activity)*willActivityWeight +
		clamp01(continuity)*willContinuityWeight
	w -= d.fatigue.Penalty(user)
	return clamp01(w)
}

// DecideProactive runs the heartbeat-side pipeline: no triggering message,
// only sustained attention plus a passing gate justify speaking up.
func (d *Decider) DecideProactive(g *Group, now time.Time) Decision {
	st := &g.Engagement
	snap := g.snapshot(now)
	activityNorm := g.activity.Norm(time.Minute, now)

	dec := Decision{
		Mode:     d.focus.EffectiveMode(st, snap.Heat),
		Activity: activityNorm,
		Method:   MethodProactive,
	}

	if exit, why := d.focus.ShouldExitFocus(st, nil, 0, now); exit {
		d.focus.ExitFocus(st, now)
		dec.FocusExit = why
	}

	if dec.Mode == ModeObservation {
		dec.Reason = "observation"
		return dec
	}
	if st.ConsecutiveReplies >= d.cfg.MaxConsecutiveReplies {
		dec.Reason = "consecutive_limit"
		return dec
	}
	if !g.activity.ShouldTrigger(now) {
		dec.Reason = "no_trigger"
		return dec
	}

	gate := d.energy.Gate(st, false, activityNorm, 0, now)
	dec.Threshold = gate.Threshold
	if !gate.Pass {
		dec.Reason = gate.Reason
		return dec
	}

	dec.Willingness = d.Willingness(snap.Heat, snap.Heat, 0, nil)
	if dec.Willingness < gate.Threshold {
		dec.Reason = "low_willingness"
		return dec
	}

	dec.Reply = true
	dec.Reason = "willing"
	return dec
}
