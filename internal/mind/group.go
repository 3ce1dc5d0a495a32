package mind

import (
	"sync"
	"time"

	"github.com/keshon/heartflow/internal/config"
)

// Group is the live engine state of one chat group. Each group carries its
// own mutex; there is no engine-wide lock, so a flood in one group never
// stalls decisions in another.
//
// Methods below assume the caller holds mu unless noted otherwise. All of
// the engine code lives in this package and locks through the runner.
type Group struct {
	ID string

	mu sync.Mutex

	Engagement       EngagementState
	Users            map[string]*UserState
	LastFatigueDecay time.Time
	Stats            GroupStats

	records        []Record
	activity       *ActivityMonitor
	lastAgentReply string
	lastChannelID  string
	lastRepliedTo  string
	lastTriggerAt  time.Time

	cfg config.EngineConfig
}

// NewGroup builds a live group from its persisted record. A zero-valued
// record yields a fresh group with full energy.
func NewGroup(id string, cfg config.EngineConfig, rec GroupRecord) *Group {
	g := &Group{
		ID:               id,
		Engagement:       rec.Engagement,
		Users:            rec.Users,
		LastFatigueDecay: rec.LastFatigueDecay,
		Stats:            rec.Stats,
		activity:         NewActivityMonitor(rec.Baseline),
		cfg:              cfg,
	}
	if g.Users == nil {
		g.Users = make(map[string]*UserState)
	}
	if g.Engagement.Energy == 0 {
		g.Engagement = NewEngagementState()
	}
	if g.Engagement.Mode == "" {
		g.Engagement.Mode = ModeNormal
	}
	return g
}

// user returns the sender's state, creating it on first sight.
func (g *Group) user(userID string) *UserState {
	u, ok := g.Users[userID]
	if !ok {
		u = &UserState{UserID: userID}
		g.Users[userID] = u
	}
	return u
}

// appendRecord pushes one record into the bounded conversation buffer.
func (g *Group) appendRecord(r Record) {
	g.records = append(g.records, r)
	if len(g.records) > g.cfg.HistoryLimit {
		g.records = g.records[len(g.records)-g.cfg.HistoryLimit:]
	}
}

// Records returns a copy of the conversation buffer for prompt building.
// Takes the lock.
func (g *Group) Records() []Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Record, len(g.records))
	copy(out, g.records)
	return out
}

// snapshot derives the activity view the interest scorer consumes.
func (g *Group) snapshot(now time.Time) ActivitySnapshot {
	snap := ActivitySnapshot{
		Heat:        GroupActivity(g.records, now),
		ActiveUsers: ActiveUserCount(g.records, 5*time.Minute, now),
	}
	if len(g.records) > 0 {
		snap.LastMessageAt = g.records[len(g.records)-1].At
	}
	return snap
}

// persistedRecord snapshots the durable parts of the group.
func (g *Group) persistedRecord() GroupRecord {
	return GroupRecord{
		Engagement:       g.Engagement,
		Users:            g.Users,
		LastFatigueDecay: g.LastFatigueDecay,
		Stats:            g.Stats,
		Baseline:         g.activity.baseline,
	}
}
