package mind

import (
	"strings"
	"time"

	"github.com/keshon/heartflow/internal/config"
)

// Focus-interest blend: being addressed dominates, message relevance and the
// stored impression of the user share the rest.
const (
	focusMentionWeight    = 0.4
	focusRelevanceWeight  = 0.3
	focusImpressionWeight = 0.3
)

// Relevance sub-weights for messages aimed at the focus target.
const (
	relevanceAddressWeight    = 0.25
	relevanceQuestionWeight   = 0.30
	relevanceInteractWeight   = 0.20
	relevanceLengthWeight     = 0.15
	relevanceContinuityWeight = 0.10
)

// FocusManager runs the focused-chat sub-state machine: entering a 1:1
// exchange with a single user inside the group, holding it while the exchange
// stays alive, and dropping out on timeout, exhaustion or silence.
//
// Observation mode is an overlay, not a transition: a quiet group reads as
// observing without clearing the focus target, so focus survives a lull.
type FocusManager struct {
	cfg config.EngineConfig
}

func NewFocusManager(cfg config.EngineConfig) *FocusManager {
	return &FocusManager{cfg: cfg}
}

// EffectiveMode resolves the mode for decision-making. Low group activity
// shadows whatever the stored mode is.
func (f *FocusManager) EffectiveMode(st *EngagementState, groupActivity float64) Mode {
	if groupActivity < f.cfg.ObservationActivity {
		return ModeObservation
	}
	if st.Mode == ModeObservation {
		// Stored observation clears once activity returns.
		return ModeNormal
	}
	return st.Mode
}

// CanSwitch reports whether enough time has passed since the last mode change.
func (f *FocusManager) CanSwitch(st *EngagementState, now time.Time) bool {
	if st.ModeSwitchAt.IsZero() {
		return true
	}
	return now.Sub(st.ModeSwitchAt) >= f.cfg.ModeSwitchCooldown
}

// MaybeEnterFocus switches the group into focused mode on the message's
// sender when the focus interest clears the threshold and the switch cooldown
// allows it. Returns true when the transition happened.
func (f *FocusManager) MaybeEnterFocus(st *EngagementState, msg Message, focusInterest float64, now time.Time) bool {
	if !f.cfg.FocusEnabled || st.Mode == ModeFocused {
		return false
	}
	if focusInterest < f.cfg.FocusThreshold {
		return false
	}
	if !f.CanSwitch(st, now) {
		return false
	}
	st.Mode = ModeFocused
	st.FocusTarget = msg.UserID
	st.ModeSwitchAt = now
	st.FocusResponseCount = 0
	return true
}

// ExitFocus drops back to normal mode, clearing the target.
func (f *FocusManager) ExitFocus(st *EngagementState, now time.Time) {
	st.Mode = ModeNormal
	st.FocusTarget = ""
	st.ModeSwitchAt = now
	st.FocusResponseCount = 0
}

// ShouldExitFocus checks the focus exit conditions against an incoming
// message (or a nil message on a heartbeat tick). Reasons: "timeout" when the
// focus session outlived its window, "exhausted" when the response cap is
// reached, "target_switch" when another user decisively pulls attention.
func (f *FocusManager) ShouldExitFocus(st *EngagementState, msg *Message, focusInterest float64, now time.Time) (bool, string) {
	if st.Mode != ModeFocused {
		return false, ""
	}
	if !st.ModeSwitchAt.IsZero() && now.Sub(st.ModeSwitchAt) > f.cfg.FocusTimeout {
		return true, "timeout"
	}
	if st.FocusResponseCount >= f.cfg.FocusMaxResponses {
		return true, "exhausted"
	}
	if msg != nil && msg.UserID != st.FocusTarget && focusInterest >= f.cfg.FocusThreshold && f.CanSwitch(st, now) {
		return true, "target_switch"
	}
	return false, ""
}

// FocusInterest scores how strongly this message pulls the agent into (or
// keeps it in) a focused exchange. impression is the stored 0..1 affinity for
// the sender, neutral 0.5 when no impression system is wired.
func (f *FocusManager) FocusInterest(msg Message, impression float64, lastAgentReply string) float64 {
	score := 0.0
	if msg.Mentioned {
		score += focusMentionWeight
	}
	score += focusRelevanceWeight * f.relevance(msg, lastAgentReply)
	score += focusImpressionWeight * clamp01(impression)
	return clamp01(score)
}

// relevance measures how directed and substantial the message is, in [0,1].
func (f *FocusManager) relevance(msg Message, lastAgentReply string) float64 {
	c := strings.ToLower(msg.Content)
	score := 0.0
	if msg.Mentioned {
		score += relevanceAddressWeight
	}
	if ClassifyMessage(msg.Content) == KindQuestion {
		score += relevanceQuestionWeight
	}
	for _, w := range interactionWords {
		if strings.Contains(c, w) {
			score += relevanceInteractWeight
			break
		}
	}
	if n := len([]rune(strings.TrimSpace(msg.Content))); n >= 10 && n <= 200 {
		score += relevanceLengthWeight
	}
	if lastAgentReply != "" {
		score += relevanceContinuityWeight * ContinuitySimilarity(lastAgentReply, msg.Content)
	}
	return clamp01(score)
}

// RecordFocusResponse bumps the response counter after the agent replies to
// the focus target.
func (f *FocusManager) RecordFocusResponse(st *EngagementState) {
	if st.Mode == ModeFocused {
		st.FocusResponseCount++
	}
}
