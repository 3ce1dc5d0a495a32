package mind

import (
	"time"

	"github.com/keshon/heartflow/internal/config"
)

// Engagement energy bounds and the recovery/consumption coefficients.
// Energy never leaves [0.1, 1.0] so a group can always eventually re-engage.
const (
	energyMin = 0.1
	energyMax = 1.0

	recoverBase       = 0.01
	recoverActivity   = 0.06
	recoverMention    = 0.10
	recoverContinuity = 0.08

	consumeBase   = 0.10
	consumeLength = 0.05
	consumeStreak = 0.04

	cooldownActivityCut = 0.3 // busy groups shrink the cooldown by up to 30%

	thresholdBase          = 0.35
	thresholdMentionCut    = 0.10
	thresholdContinuityCut = 0.05
	thresholdStreakStep    = 0.05
	thresholdCap           = 0.7
	continuityStrong       = 0.75
)

// EnergyController implements the engagement-energy gate: energy recovers on
// every observed message, is consumed on every sent reply, and gates replies
// behind a dynamic cooldown and threshold.
type EnergyController struct {
	cfg config.EngineConfig
}

func NewEnergyController(cfg config.EngineConfig) *EnergyController {
	return &EnergyController{cfg: cfg}
}

// Recover raises energy for one observed message. activityNorm is the 60s
// group activity in [0,1], continuity the squashed similarity to the agent's
// last reply.
func (e *EnergyController) Recover(st *EngagementState, mentioned bool, activityNorm, continuity float64) {
	gain := recoverBase + recoverActivity*clamp01(activityNorm)
	if mentioned {
		gain += recoverMention
	}
	gain += recoverContinuity * clamp01(continuity)
	st.Energy = clamp(st.Energy+gain, energyMin, energyMax)
}

// Consume lowers energy for one sent reply of the given rune length.
func (e *EnergyController) Consume(st *EngagementState, replyLen int) {
	lengthNorm := float64(replyLen) / 200.0
	if lengthNorm > 1 {
		lengthNorm = 1
	}
	cost := consumeBase + consumeLength*lengthNorm + consumeStreak*float64(st.Streak)
	st.Energy = clamp(st.Energy-cost, energyMin, energyMax)
}

// GateResult is the gate's verdict plus the dynamic values it was checked
// against, for logging and decision records.
type GateResult struct {
	Pass      bool
	Reason    string
	Threshold float64
	Cooldown  time.Duration
	Remaining time.Duration
}

// Gate checks the dynamic cooldown and the dynamic energy threshold.
// Both must pass before a reply is allowed to spend energy.
func (e *EnergyController) Gate(st *EngagementState, mentioned bool, activityNorm, continuity float64, now time.Time) GateResult {
	cd := e.Cooldown(activityNorm)
	res := GateResult{
		Threshold: e.Threshold(st, mentioned, continuity),
		Cooldown:  cd,
	}
	if !st.LastReplyAt.IsZero() {
		elapsed := now.Sub(st.LastReplyAt)
		if elapsed < cd {
			res.Reason = "cooldown"
			res.Remaining = cd - elapsed
			return res
		}
	}
	if st.Energy < res.Threshold {
		res.Reason = "low_energy"
		return res
	}
	res.Pass = true
	return res
}

// Cooldown scales the base cooldown down in busy groups.
func (e *EnergyController) Cooldown(activityNorm float64) time.Duration {
	scale := 1.0 - cooldownActivityCut*clamp01(activityNorm)
	return time.Duration(float64(e.cfg.EnergyBaseCooldown) * scale)
}

// Threshold is the energy level required to reply right now. Mentions and
// strong continuity lower it, a running reply streak raises it, capped so the
// gate can never demand more than 0.7 energy.
func (e *EnergyController) Threshold(st *EngagementState, mentioned bool, continuity float64) float64 {
	th := thresholdBase
	if mentioned {
		th -= thresholdMentionCut
	}
	if continuity >= continuityStrong {
		th -= thresholdContinuityCut
	}
	th += thresholdStreakStep * float64(st.Streak)
	if th > thresholdCap {
		th = thresholdCap
	}
	if th < 0 {
		th = 0
	}
	return th
}

// NewEngagementState returns the starting state for a freshly seen group.
func NewEngagementState() EngagementState {
	return EngagementState{Energy: energyMax, Mode: ModeNormal}
}
