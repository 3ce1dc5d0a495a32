package mind

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/keshon/heartflow/internal/config"
)

func TestFatigueUpdate(t *testing.T) {
	cfg := config.DefaultEngine()
	tr := NewFatigueTracker(cfg)

	t.Run("increments accumulate", func(t *testing.T) {
		users := map[string]*UserState{"u1": {UserID: "u1"}}
		var last time.Time
		now := testNow
		for i := 0; i < 3; i++ {
			tr.Update(users, &last, users["u1"], 1.0, now)
			users["u1"].LastInteractionAt = now
			now = now.Add(time.Minute)
		}
		assert.Equal(t, 3.0, users["u1"].FatigueLevel)
	})

	t.Run("level never goes negative", func(t *testing.T) {
		users := map[string]*UserState{"u1": {UserID: "u1"}}
		var last time.Time
		tr.Update(users, &last, users["u1"], -5.0, testNow)
		assert.GreaterOrEqual(t, users["u1"].FatigueLevel, 0.0)
	})

	t.Run("long silence resets the session", func(t *testing.T) {
		users := map[string]*UserState{"u1": {
			UserID:             "u1",
			FatigueLevel:       4,
			ConsecutiveReplies: 7,
			LastInteractionAt:  testNow,
		}}
		last := testNow
		tr.Update(users, &last, users["u1"], 1.0, testNow.Add(cfg.FatigueRecovery+time.Second))
		assert.Equal(t, 1.0, users["u1"].FatigueLevel)
		assert.Equal(t, 0, users["u1"].ConsecutiveReplies)
	})
}

func TestFatigueDecayPass(t *testing.T) {
	cfg := config.DefaultEngine()
	tr := NewFatigueTracker(cfg)

	t.Run("halves levels once per hour", func(t *testing.T) {
		users := map[string]*UserState{
			"u1": {UserID: "u1", FatigueLevel: 4},
			"u2": {UserID: "u2", FatigueLevel: 0.15},
		}
		last := testNow
		tr.DecayPass(users, &last, testNow.Add(61*time.Minute))
		assert.Equal(t, 2.0, users["u1"].FatigueLevel)
		// Negligible levels are pruned to zero.
		assert.Equal(t, 0.0, users["u2"].FatigueLevel)
	})

	t.Run("no decay inside the hour", func(t *testing.T) {
		users := map[string]*UserState{"u1": {UserID: "u1", FatigueLevel: 4}}
		last := testNow
		tr.DecayPass(users, &last, testNow.Add(30*time.Minute))
		assert.Equal(t, 4.0, users["u1"].FatigueLevel)
	})

	t.Run("first pass only arms the clock", func(t *testing.T) {
		users := map[string]*UserState{"u1": {UserID: "u1", FatigueLevel: 4}}
		var last time.Time
		tr.DecayPass(users, &last, testNow)
		assert.Equal(t, 4.0, users["u1"].FatigueLevel)
		assert.Equal(t, testNow, last)
	})
}

func TestFatiguePenalty(t *testing.T) {
	cfg := config.DefaultEngine()
	tr := NewFatigueTracker(cfg)

	assert.Equal(t, 0.0, tr.Penalty(&UserState{}))
	assert.InDelta(t, 0.1, tr.Penalty(&UserState{FatigueLevel: 2}), 1e-9)
	assert.Equal(t, 0.5, tr.Penalty(&UserState{FatigueLevel: cfg.FatigueThreshold}))
	assert.Equal(t, 0.5, tr.Penalty(&UserState{FatigueLevel: 99}))
	assert.Equal(t, 0.0, tr.Penalty(nil))
}

// A user who keeps the agent talking eventually forces a rest, and an hour of
// quiet brings them back.
func TestFatigueForcedRestAndRecovery(t *testing.T) {
	cfg := config.DefaultEngine()
	tr := NewFatigueTracker(cfg)

	u := &UserState{UserID: "u1"}
	users := map[string]*UserState{"u1": u}
	last := testNow
	now := testNow
	for i := 0; !tr.IsFatigued(u); i++ {
		if i > 20 {
			t.Fatal("fatigue never tripped")
		}
		tr.Update(users, &last, u, 1.0, now)
		u.LastInteractionAt = now
		now = now.Add(30 * time.Second)
	}
	assert.True(t, tr.IsFatigued(u))

	// Two hourly decay passes halve 5 -> 2.5 -> 1.25, under the threshold.
	tr.DecayPass(users, &last, now.Add(90*time.Minute))
	tr.DecayPass(users, &last, now.Add(200*time.Minute))
	assert.False(t, tr.IsFatigued(u))
}

func TestFatigueDisabled(t *testing.T) {
	cfg := config.DefaultEngine()
	cfg.FatigueEnabled = false
	tr := NewFatigueTracker(cfg)

	u := &UserState{UserID: "u1", FatigueLevel: 99, ConsecutiveReplies: 99}
	assert.False(t, tr.IsFatigued(u))
	assert.Equal(t, 0.0, tr.Penalty(u))
}
