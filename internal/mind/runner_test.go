package mind

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/heartflow/internal/ai"
	"github.com/keshon/heartflow/internal/config"
	"github.com/keshon/heartflow/internal/impression"
)

type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	lastMsg []ai.Message
}

func (p *fakeProvider) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastMsg = messages
	return p.reply, p.err
}

type fakeResponder struct {
	mu     sync.Mutex
	sent   []string
	typing int
}

func (r *fakeResponder) Send(channelID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, content)
	return nil
}

func (r *fakeResponder) Typing(channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typing++
	return nil
}

func testEngine(reply string, err error) (*Engine, *fakeProvider, *fakeResponder) {
	cfg := config.DefaultEngine()
	cfg.TypingEnabled = false
	provider := &fakeProvider{reply: reply, err: err}
	responder := &fakeResponder{}
	store := NewStore(cfg, nil)
	engine := NewEngine(cfg, store, provider, impression.Noop{}, responder)
	return engine, provider, responder
}

func mentionMsg(content string) Message {
	return Message{
		GroupID:   "g1",
		ChannelID: "c1",
		UserID:    "u1",
		Username:  "alice",
		Content:   content,
		Mentioned: true,
		At:        time.Now(),
	}
}

func TestHandleMessageReplies(t *testing.T) {
	engine, provider, responder := testEngine("sure, taking a look", nil)

	engine.HandleMessage(context.Background(), mentionMsg("could you review the deployment plan?"))

	require.Equal(t, 1, provider.calls)
	require.Equal(t, []string{"sure, taking a look"}, responder.sent)

	g := engine.Store().Group("g1")
	assert.Less(t, g.Engagement.Energy, 1.0)
	assert.Equal(t, 1, g.Engagement.Streak)
	assert.False(t, g.Engagement.LastReplyAt.IsZero())
	assert.Equal(t, 1, g.Stats.RepliesSent)
	assert.Equal(t, 1, g.Users["u1"].ReplyCount)
	assert.InDelta(t, 1.0, g.Users["u1"].FatigueLevel, 1e-9)

	// The agent's own reply lands in the conversation buffer.
	recs := g.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "assistant", recs[1].Role)
}

// The model deciding "this does not need me" must leave the engagement state
// untouched: no energy spend, no streak, nothing sent.
func TestHandleMessageAirReading(t *testing.T) {
	engine, provider, responder := testEngine("[DO_NOT_REPLY]", nil)

	engine.HandleMessage(context.Background(), mentionMsg("are you around?"))

	require.Equal(t, 1, provider.calls)
	assert.Empty(t, responder.sent)

	g := engine.Store().Group("g1")
	assert.Equal(t, 1.0, g.Engagement.Energy)
	assert.Equal(t, 0, g.Engagement.Streak)
	assert.True(t, g.Engagement.LastReplyAt.IsZero())
	assert.Equal(t, 1, g.Stats.AirReadSkips)
	assert.Equal(t, 0, g.Stats.RepliesSent)
}

func TestHandleMessageGenerateFailure(t *testing.T) {
	t.Run("mention gets the fallback line", func(t *testing.T) {
		engine, _, responder := testEngine("", errors.New("provider down"))
		engine.HandleMessage(context.Background(), mentionMsg("can you check this?"))
		require.Len(t, responder.sent, 1)
		assert.Equal(t, config.DefaultEngine().FallbackReply, responder.sent[0])
	})

	t.Run("unprompted decision fails closed", func(t *testing.T) {
		engine, _, responder := testEngine("", errors.New("provider down"))
		msg := mentionMsg("can you check this?")
		msg.Mentioned = false
		// Without the mention the quiet group is only observed; either way
		// nothing may be sent.
		engine.HandleMessage(context.Background(), msg)
		assert.Empty(t, responder.sent)
	})
}

func TestHandleMessageSkipPersistsNothingSent(t *testing.T) {
	engine, provider, responder := testEngine("anything", nil)

	msg := mentionMsg("ok")
	msg.Mentioned = false
	engine.HandleMessage(context.Background(), msg)

	assert.Zero(t, provider.calls)
	assert.Empty(t, responder.sent)
	g := engine.Store().Group("g1")
	assert.Equal(t, 1, g.Stats.MessagesSeen)
	assert.Equal(t, 1, g.Stats.RepliesSkip)
}

func TestHandleMessageAirReadingPrompt(t *testing.T) {
	engine, provider, _ := testEngine("[DO_NOT_REPLY]", nil)

	engine.HandleMessage(context.Background(), mentionMsg("what do you think?"))

	require.NotEmpty(t, provider.lastMsg)
	sys := provider.lastMsg[0]
	require.Equal(t, "system", sys.Role)
	assert.Contains(t, sys.Content, "[DO_NOT_REPLY]")
	// User lines carry the speaker's name.
	assert.Contains(t, provider.lastMsg[1].Content, "alice: ")
}

func TestEngineStats(t *testing.T) {
	engine, _, _ := testEngine("sure", nil)

	engine.HandleMessage(context.Background(), mentionMsg("could you review the deployment plan?"))
	quiet := mentionMsg("ok")
	quiet.Mentioned = false
	quiet.GroupID = "g2"
	engine.HandleMessage(context.Background(), quiet)

	st := engine.Stats()
	assert.Equal(t, 2, st.Groups)
	assert.Equal(t, 2, st.MessagesSeen)
	assert.Equal(t, 1, st.RepliesSent)
	assert.Equal(t, 1, st.RepliesSkip)
	assert.InDelta(t, 0.5, st.ReplyRate, 1e-9)
}

// A user who only ever chats in separate sessions must never hit the
// session cap: each gap longer than the recovery window starts the fatigue
// bookkeeping over before the new reply is counted.
func TestDeliverSessionFatigueReset(t *testing.T) {
	engine, _, responder := testEngine("noted", nil)
	g := engine.Store().Group("g1")
	dec := Decision{Reply: true, Method: MethodThreshold, Reason: "willing"}

	at := testNow
	for i := 0; i < engine.cfg.MaxSessionReplies; i++ {
		engine.deliver(g, "c1", "noted", dec, "u1", at)
		at = at.Add(engine.cfg.FatigueRecovery + time.Minute)
	}

	u := g.Users["u1"]
	assert.Equal(t, 1, u.ConsecutiveReplies)
	assert.InDelta(t, 1.0, u.FatigueLevel, 1e-9)
	assert.False(t, engine.decider.fatigue.IsFatigued(u))
	assert.Equal(t, engine.cfg.MaxSessionReplies, u.ReplyCount)
	require.Len(t, responder.sent, engine.cfg.MaxSessionReplies)
}

// Replies inside one session still accumulate.
func TestDeliverFatigueWithinSession(t *testing.T) {
	engine, _, _ := testEngine("noted", nil)
	g := engine.Store().Group("g1")
	dec := Decision{Reply: true, Method: MethodThreshold, Reason: "willing"}

	engine.deliver(g, "c1", "noted", dec, "u1", testNow)
	engine.deliver(g, "c1", "noted", dec, "u1", testNow.Add(time.Minute))

	u := g.Users["u1"]
	assert.Equal(t, 2, u.ConsecutiveReplies)
	assert.InDelta(t, 2.0, u.FatigueLevel, 1e-9)
}

// proactiveReadyGroup arranges a group that passes the proactive pipeline:
// busy buffer, sustained attention, a known channel.
func proactiveReadyGroup(engine *Engine) *Group {
	g := engine.Store().Group("g1")
	fillBusyBuffer(g, time.Now())
	g.activity.focus = 0.8
	g.lastChannelID = "c1"
	return g
}

// Two heartbeat triggers inside the cooldown run the pipeline once.
func TestTriggerProactiveCooldown(t *testing.T) {
	engine, provider, _ := testEngine("hello there", nil)

	engine.TriggerProactive(context.Background(), "g1")
	g := engine.Store().Group("g1")
	assert.Equal(t, 1, g.Stats.RepliesSkip)

	engine.TriggerProactive(context.Background(), "g1")
	assert.Equal(t, 1, g.Stats.RepliesSkip)
	assert.Zero(t, provider.calls)

	// Once the cooldown has passed the pipeline runs again.
	g.mu.Lock()
	g.lastTriggerAt = time.Now().Add(-engine.cfg.TriggerCooldown - time.Second)
	g.mu.Unlock()
	engine.TriggerProactive(context.Background(), "g1")
	assert.Equal(t, 2, g.Stats.RepliesSkip)
}

func TestTriggerProactiveGenerateFailure(t *testing.T) {
	engine, provider, responder := testEngine("", errors.New("provider down"))
	g := proactiveReadyGroup(engine)

	engine.TriggerProactive(context.Background(), "g1")

	require.Equal(t, 1, provider.calls)
	assert.Empty(t, responder.sent)
	// A provider error is not an air-reading decision.
	assert.Zero(t, g.Stats.AirReadSkips)
	assert.Equal(t, 1, g.Stats.RepliesSkip)
}

func TestTriggerProactiveAirReading(t *testing.T) {
	engine, provider, responder := testEngine("[DO_NOT_REPLY]", nil)
	g := proactiveReadyGroup(engine)

	engine.TriggerProactive(context.Background(), "g1")

	require.Equal(t, 1, provider.calls)
	assert.Empty(t, responder.sent)
	assert.Equal(t, 1, g.Stats.AirReadSkips)
}

// A skipped message breaks the consecutive-reply run, so the cap can never
// wedge a group permanently.
func TestSkipResetsConsecutiveRun(t *testing.T) {
	engine, _, responder := testEngine("short answer", nil)

	engine.HandleMessage(context.Background(), mentionMsg("could you review the deployment plan?"))
	require.Len(t, responder.sent, 1)
	g := engine.Store().Group("g1")
	assert.Equal(t, 1, g.Engagement.ConsecutiveReplies)

	quiet := mentionMsg("ok")
	quiet.Mentioned = false
	engine.HandleMessage(context.Background(), quiet)
	assert.Zero(t, g.Engagement.ConsecutiveReplies)
	assert.Zero(t, g.Engagement.Streak)
}
