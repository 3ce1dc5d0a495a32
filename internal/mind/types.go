package mind

import "time"

// Mode is the per-group interaction mode.
type Mode string

const (
	ModeNormal      Mode = "normal"
	ModeFocused     Mode = "focused"
	ModeObservation Mode = "observation"
)

// EngagementState — per-group engagement capacity and focus sub-state.
// Owned exclusively by the engine, persisted after each mutation.
// Invariant: FocusTarget is non-empty iff Mode == ModeFocused.
type EngagementState struct {
	Energy             float64   `json:"energy"` // clamped to [0.1, 1.0]
	LastReplyAt        time.Time `json:"last_reply_at"`
	Streak             int       `json:"streak"` // consecutive replies without reset
	Mode               Mode      `json:"mode"`
	FocusTarget        string    `json:"focus_target,omitempty"`
	ModeSwitchAt       time.Time `json:"mode_switch_at"`
	FocusResponseCount int       `json:"focus_response_count"`
	ConsecutiveReplies int       `json:"consecutive_replies"` // bot replies without a skip
}

// UserState — per (user, group), created lazily on first observed message.
type UserState struct {
	UserID             string    `json:"user_id"`
	FatigueLevel       float64   `json:"fatigue_level"` // >= 0, hourly decay
	ReplyCount         int       `json:"reply_count"`
	ConsecutiveReplies int       `json:"consecutive_replies"`
	ConversationStreak int       `json:"conversation_streak"`
	LastInteractionAt  time.Time `json:"last_interaction_at"`
	PersonalInterest   float64   `json:"personal_interest"` // 0..1, slow-moving affinity
}

// Record — one message in a group's bounded conversation buffer.
// Insertion order significant; used for similarity and activity windows.
type Record struct {
	At        time.Time `json:"at"`
	UserID    string    `json:"user_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	ChannelID string    `json:"channel_id,omitempty"`
	Mentioned bool      `json:"mentioned"`
}

// Message is the inbound event the engine consumes: sender, group, raw text,
// an explicit "mentions me" flag and a timestamp.
type Message struct {
	GroupID   string
	ChannelID string
	UserID    string
	Username  string
	Content   string
	Mentioned bool
	At        time.Time
}

// GroupStats are running counters for the /stats style introspection surface.
type GroupStats struct {
	MessagesSeen  int `json:"messages_seen"`
	RepliesSent   int `json:"replies_sent"`
	RepliesSkip   int `json:"replies_skipped"`
	FocusSessions int `json:"focus_sessions"`
	AirReadSkips  int `json:"air_read_skips"`
}

// GroupRecord is the persisted shape of a group's engine state.
// Conversation buffers are rebuilt from live traffic and not persisted.
type GroupRecord struct {
	Engagement       EngagementState       `json:"engagement"`
	Users            map[string]*UserState `json:"users"`
	LastFatigueDecay time.Time             `json:"last_fatigue_decay"`
	Stats            GroupStats            `json:"stats"`
	Baseline         *Baseline             `json:"baseline,omitempty"`
}

// Persisted key prefix: one key per group, no ad hoc concatenation elsewhere.
const groupKeyPrefix = "group:"

func groupKey(groupID string) string { return groupKeyPrefix + groupID }

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
