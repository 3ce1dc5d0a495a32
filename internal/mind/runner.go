package mind

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/keshon/heartflow/internal/ai"
	"github.com/keshon/heartflow/internal/config"
	"github.com/keshon/heartflow/internal/impression"
)

// Responder is the transport-side surface the engine speaks through.
type Responder interface {
	Send(channelID, content string) error
	Typing(channelID string) error
}

// Engine is the engagement engine: it ingests group messages, decides
// whether to speak, generates replies and keeps every group's state
// persisted. One Engine serves all groups; per-group work is serialized by
// the group's own lock.
type Engine struct {
	cfg         config.EngineConfig
	store       *Store
	decider     *Decider
	provider    ai.Provider
	impressions impression.Provider
	limiter     *GenerateLimiter
	responder   Responder
	persona     string
}

func NewEngine(cfg config.EngineConfig, store *Store, provider ai.Provider, impressions impression.Provider, responder Responder) *Engine {
	if impressions == nil {
		impressions = impression.Noop{}
	}
	return &Engine{
		cfg:         cfg,
		store:       store,
		decider:     NewDecider(cfg),
		provider:    provider,
		impressions: impressions,
		limiter:     NewGenerateLimiter(),
		responder:   responder,
		persona:     defaultPersona,
	}
}

// SetPersona overrides the system persona used in prompts.
func (e *Engine) SetPersona(p string) { e.persona = p }

// Store exposes the group arena, for the heartbeat registry and stats.
func (e *Engine) Store() *Store { return e.store }

// ResetGroup wipes one group's engine state, live and persisted.
func (e *Engine) ResetGroup(groupID string) { e.store.Reset(groupID) }

// EngineStats aggregates the per-group counters.
type EngineStats struct {
	Groups       int
	MessagesSeen int
	RepliesSent  int
	RepliesSkip  int
	ReplyRate    float64
}

// Stats snapshots the counters across all live groups.
func (e *Engine) Stats() EngineStats {
	var st EngineStats
	for _, g := range e.store.All() {
		g.mu.Lock()
		st.Groups++
		st.MessagesSeen += g.Stats.MessagesSeen
		st.RepliesSent += g.Stats.RepliesSent
		st.RepliesSkip += g.Stats.RepliesSkip
		g.mu.Unlock()
	}
	if st.MessagesSeen > 0 {
		st.ReplyRate = float64(st.RepliesSent) / float64(st.MessagesSeen)
	}
	return st
}

// HandleMessage runs the full reactive pipeline for one inbound message.
// It never returns an error to the transport: every failure degrades to
// silence (or a fallback line when directly addressed).
func (e *Engine) HandleMessage(ctx context.Context, msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now()
	}
	g := e.store.Group(msg.GroupID)
	imp := impression.SafeScore(ctx, e.impressions, msg.GroupID, msg.UserID)

	g.mu.Lock()
	e.ingest(g, msg)
	dec := e.decider.Decide(g, msg, imp, msg.At)
	g.Stats.MessagesSeen++
	if !dec.Reply {
		e.recordSkip(g)
		e.store.saveLocked(g)
		g.mu.Unlock()
		e.logDecision(g.ID, dec)
		return
	}
	records := make([]Record, len(g.records))
	copy(records, g.records)
	e.store.saveLocked(g)
	g.mu.Unlock()
	e.logDecision(g.ID, dec)

	if !e.limiter.Allow() {
		e.skipAfterDecision(g, "rate_limited")
		return
	}

	reply, ok := e.generate(ctx, g.ID, msg, records, dec)
	if !ok {
		if msg.Mentioned && e.cfg.FallbackReply != "" {
			e.deliver(g, msg.ChannelID, e.cfg.FallbackReply, dec, msg.UserID, msg.At)
		} else {
			e.skipAfterDecision(g, "generate_failed")
		}
		return
	}
	if e.isNoReply(reply) {
		g.mu.Lock()
		g.Stats.AirReadSkips++
		g.mu.Unlock()
		dec.Method = MethodAirReading
		e.skipAfterDecision(g, "air_reading")
		return
	}

	e.simulateTyping(ctx, msg.ChannelID)
	e.deliver(g, msg.ChannelID, reply, dec, msg.UserID, time.Now())
}

// TriggerProactive is the heartbeat entry point: speak up without a
// triggering message when sustained attention and the gate allow it.
func (e *Engine) TriggerProactive(ctx context.Context, groupID string) {
	now := time.Now()
	g := e.store.Group(groupID)

	g.mu.Lock()
	if !g.lastTriggerAt.IsZero() && now.Sub(g.lastTriggerAt) < e.cfg.TriggerCooldown {
		g.mu.Unlock()
		return
	}
	g.lastTriggerAt = now
	channelID := g.lastChannelID
	dec := e.decider.DecideProactive(g, now)
	if !dec.Reply || channelID == "" {
		e.recordSkip(g)
		e.store.saveLocked(g)
		g.mu.Unlock()
		return
	}
	records := make([]Record, len(g.records))
	copy(records, g.records)
	e.store.saveLocked(g)
	g.mu.Unlock()
	e.logDecision(g.ID, dec)

	if !e.limiter.Allow() {
		e.skipAfterDecision(g, "rate_limited")
		return
	}
	reply, ok := e.generate(ctx, g.ID, Message{GroupID: groupID, ChannelID: channelID, At: now}, records, dec)
	if !ok {
		e.skipAfterDecision(g, "generate_failed")
		return
	}
	if e.isNoReply(reply) {
		g.mu.Lock()
		g.Stats.AirReadSkips++
		g.mu.Unlock()
		e.skipAfterDecision(g, "air_reading")
		return
	}

	e.simulateTyping(ctx, channelID)
	e.deliver(g, channelID, reply, dec, "", time.Now())
}

// ingest updates the group's observational state for one message. Caller
// holds g.mu.
func (e *Engine) ingest(g *Group, msg Message) {
	g.appendRecord(Record{
		At:        msg.At,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Role:      "user",
		Content:   msg.Content,
		ChannelID: msg.ChannelID,
		Mentioned: msg.Mentioned,
	})
	g.lastChannelID = msg.ChannelID
	g.activity.Observe(msg.At)
	if msg.Mentioned {
		g.activity.BoostMention()
	}
	e.decider.fatigue.DecayPass(g.Users, &g.LastFatigueDecay, msg.At)

	continuity := ContinuitySimilarity(g.lastAgentReply, msg.Content)
	e.decider.energy.Recover(&g.Engagement, msg.Mentioned, g.activity.Norm(time.Minute, msg.At), continuity)
}

// recordSkip applies the skip-side state changes. Caller holds g.mu.
// A skipped message breaks both the reply streak and the consecutive run.
func (e *Engine) recordSkip(g *Group) {
	g.Engagement.Streak = 0
	g.Engagement.ConsecutiveReplies = 0
	g.Stats.RepliesSkip++
}

// skipAfterDecision handles skips discovered after the lock was released
// (rate limit, generation failure, air reading).
func (e *Engine) skipAfterDecision(g *Group, reason string) {
	g.mu.Lock()
	g.Engagement.Streak = 0
	g.Engagement.ConsecutiveReplies = 0
	g.Stats.RepliesSkip++
	e.store.saveLocked(g)
	g.mu.Unlock()
	log.Printf("[MIND] %s skip reason=%s", g.ID, reason)
}

// deliver sends the reply and commits the reply-side state: energy spend,
// streaks, fatigue and focus bookkeeping.
func (e *Engine) deliver(g *Group, channelID, reply string, dec Decision, userID string, now time.Time) {
	if err := e.responder.Send(channelID, reply); err != nil {
		log.Printf("[ERR] mind: send to %s: %v", channelID, err)
		e.skipAfterDecision(g, "send_failed")
		return
	}

	g.mu.Lock()
	g.appendRecord(Record{
		At:        now,
		Role:      "assistant",
		Content:   reply,
		ChannelID: channelID,
	})
	g.lastAgentReply = reply
	e.decider.energy.Consume(&g.Engagement, len([]rune(reply)))
	g.Engagement.LastReplyAt = now
	// A change of addressee starts a fresh streak.
	if userID != g.lastRepliedTo {
		g.Engagement.Streak = 0
	}
	g.lastRepliedTo = userID
	g.Engagement.Streak++
	g.Engagement.ConsecutiveReplies++
	e.decider.focus.RecordFocusResponse(&g.Engagement)
	if dec.FocusEnter {
		g.Stats.FocusSessions++
	}
	if userID != "" {
		u := g.user(userID)
		// Update must see the previous interaction time: a gap longer than
		// the recovery window starts a fresh session before this reply counts.
		e.decider.fatigue.Update(g.Users, &g.LastFatigueDecay, u, 1.0, now)
		u.ReplyCount++
		u.ConsecutiveReplies++
		u.ConversationStreak++
		u.LastInteractionAt = now
	}
	g.Stats.RepliesSent++
	e.store.saveLocked(g)
	energy := g.Engagement.Energy
	g.mu.Unlock()

	log.Printf("[MIND] %s replied method=%s willingness=%.2f threshold=%.2f energy=%.2f",
		g.ID, dec.Method, dec.Willingness, dec.Threshold, energy)
}

// generate calls the AI provider under the configured deadline. Any error
// fails closed.
func (e *Engine) generate(ctx context.Context, groupID string, msg Message, records []Record, dec Decision) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GenerateTimeout)
	defer cancel()

	messages := e.buildMessages(ctx, groupID, msg, records, dec)
	reply, err := e.provider.Generate(ctx, messages)
	if err != nil {
		log.Printf("[ERR] mind: generate for %s: %v", groupID, err)
		return "", false
	}
	return reply, true
}

// buildMessages assembles the prompt: persona, air-reading instructions,
// remembered lines about the sender, then the conversation buffer.
func (e *Engine) buildMessages(ctx context.Context, groupID string, msg Message, records []Record, dec Decision) []ai.Message {
	var sys strings.Builder
	sys.WriteString(e.persona)
	if e.cfg.AirReadingEnabled && dec.Method != MethodFocus {
		fmt.Fprintf(&sys, "\n\nYou are one voice among many in a group chat. Read the room: if the conversation does not need you, answer with exactly %s and nothing else.", e.cfg.NoReplyMarker)
		fmt.Fprintf(&sys, "\nRoom state: mode=%s willingness=%.2f interest=%.2f activity=%.2f impression=%.2f sender_fatigue=%.1f",
			dec.Mode, dec.Willingness, dec.Interest, dec.Activity, dec.Impression, dec.Fatigue)
	}
	if dec.Method == MethodProactive {
		sys.WriteString("\n\nNobody addressed you. Join in naturally only if you have something worth adding.")
	}
	if msg.UserID != "" {
		if lines, err := e.impressions.Recall(ctx, groupID, msg.UserID); err == nil && len(lines) > 0 {
			sys.WriteString("\n\nWhat you remember about " + displayName(msg) + ":")
			for _, l := range lines {
				sys.WriteString("\n- " + l)
			}
		}
	}

	out := []ai.Message{{Role: "system", Content: sys.String()}}
	for _, r := range records {
		m := ai.Message{Role: r.Role, Content: r.Content}
		if r.Role == "user" && r.Username != "" {
			m.Content = r.Username + ": " + r.Content
		}
		out = append(out, m)
	}
	return out
}

// isNoReply detects the air-reading sentinel anywhere in the reply; models
// sometimes wrap it in stray punctuation.
func (e *Engine) isNoReply(reply string) bool {
	if e.cfg.NoReplyMarker == "" {
		return false
	}
	return strings.Contains(reply, e.cfg.NoReplyMarker)
}

// simulateTyping shows a typing indicator and waits a human-feeling delay.
// A cancelled ctx cuts the wait short so shutdown is never held up.
func (e *Engine) simulateTyping(ctx context.Context, channelID string) {
	if !e.cfg.TypingEnabled {
		return
	}
	if err := e.responder.Typing(channelID); err != nil {
		log.Printf("[ERR] mind: typing in %s: %v", channelID, err)
	}
	span := e.cfg.TypingMaxDelay - e.cfg.TypingMinDelay
	delay := e.cfg.TypingMinDelay
	if span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Engine) logDecision(groupID string, dec Decision) {
	log.Printf("[MIND] %s decide reply=%t reason=%s mode=%s interest=%.2f willingness=%.2f threshold=%.2f",
		groupID, dec.Reply, dec.Reason, dec.Mode, dec.Interest, dec.Willingness, dec.Threshold)
}

func displayName(msg Message) string {
	if msg.Username != "" {
		return msg.Username
	}
	return msg.UserID
}

const defaultPersona = "You are a friendly, observant member of this group chat. You speak casually, keep replies short and never dominate the conversation."
