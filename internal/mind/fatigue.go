package mind

import (
	"time"

	"github.com/keshon/heartflow/internal/config"
)

// Fatigue tuning. Levels below the floor are pruned on a decay pass.
const (
	fatigueFloor       = 0.1
	fatiguePenaltyHigh = 0.5
	fatiguePenaltyCoef = 0.05
	fatigueDecayEvery  = time.Hour
)

// FatigueTracker maintains per-user fatigue inside one group. Decay is lazy:
// it runs at most once per hour, triggered by whichever update comes first.
// Callers must tolerate stale values between updates.
type FatigueTracker struct {
	cfg config.EngineConfig
}

func NewFatigueTracker(cfg config.EngineConfig) *FatigueTracker {
	return &FatigueTracker{cfg: cfg}
}

// Update applies the hourly decay pass first, then bumps the user's fatigue.
// A gap longer than the recovery window since the user's last interaction
// resets fatigue and the consecutive-reply counter before the increment.
func (t *FatigueTracker) Update(users map[string]*UserState, lastDecay *time.Time, user *UserState, increment float64, now time.Time) {
	if !t.cfg.FatigueEnabled || user == nil {
		return
	}
	t.DecayPass(users, lastDecay, now)

	if !user.LastInteractionAt.IsZero() && now.Sub(user.LastInteractionAt) > t.cfg.FatigueRecovery {
		user.FatigueLevel = 0
		user.ConsecutiveReplies = 0
	}
	user.FatigueLevel += increment
	if user.FatigueLevel < 0 {
		user.FatigueLevel = 0
	}
}

// DecayPass multiplies every user's fatigue by (1 - decay rate) when at least
// an hour has elapsed since the previous pass, pruning negligible levels.
func (t *FatigueTracker) DecayPass(users map[string]*UserState, lastDecay *time.Time, now time.Time) {
	if lastDecay.IsZero() {
		*lastDecay = now
		return
	}
	if now.Sub(*lastDecay) < fatigueDecayEvery {
		return
	}
	for _, u := range users {
		u.FatigueLevel *= 1 - t.cfg.FatigueDecayRate
		if u.FatigueLevel < fatigueFloor {
			u.FatigueLevel = 0
		}
	}
	*lastDecay = now
}

// Penalty returns the willingness penalty for the user's current fatigue:
// a fixed high penalty at or above the threshold, linear below it.
func (t *FatigueTracker) Penalty(user *UserState) float64 {
	if !t.cfg.FatigueEnabled || user == nil {
		return 0
	}
	if user.FatigueLevel >= t.cfg.FatigueThreshold {
		return fatiguePenaltyHigh
	}
	return user.FatigueLevel * fatiguePenaltyCoef
}

// IsFatigued reports whether the user should force a rest: too many replies
// in one session or fatigue at the threshold.
func (t *FatigueTracker) IsFatigued(user *UserState) bool {
	if !t.cfg.FatigueEnabled || user == nil {
		return false
	}
	if user.ConsecutiveReplies >= t.cfg.MaxSessionReplies {
		return true
	}
	return user.FatigueLevel >= t.cfg.FatigueThreshold
}

// Reset clears the user's fatigue and session counters.
func (t *FatigueTracker) Reset(user *UserState) {
	if user == nil {
		return
	}
	user.FatigueLevel = 0
	user.ConsecutiveReplies = 0
}

// Level returns the user's current (possibly stale) fatigue level.
func (t *FatigueTracker) Level(user *UserState) float64 {
	if user == nil {
		return 0
	}
	return user.FatigueLevel
}
