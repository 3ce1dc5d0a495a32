package mind

import (
	"strings"
	"time"
)

// Frequency-control tuning. The focus scalar trends up while the current
// minute runs hotter than 1.5x the hourly baseline, down otherwise, both
// smoothed exponentially. A mention adds a decaying transient boost.
const (
	focusWindow         = 100 // retained message timestamps
	focusSmoothing      = 0.1
	focusUpStep         = 0.1
	focusDownStep       = 0.05
	focusBaselineFactor = 1.5
	focusTriggerLevel   = 0.7
	mentionBoost        = 0.5
	mentionBoostDecay   = 0.95
	mentionBoostFloor   = 0.01

	baselineSamplesPerHour = 30
	assumedMaxPerMinute    = 5.0 // messages/min considered "fully active"
)

// Baseline keeps 24 hourly buckets of rolling message-count samples and falls
// back to time-of-day defaults while a bucket has no history.
type Baseline struct {
	Samples [24][]float64 `json:"samples"`
}

// defaultHourlyMessages approximates typical group traffic per hour:
// commute, lunch and evening peaks, deep-night trough.
func defaultHourlyMessages(hour int) float64 {
	switch {
	case hour >= 6 && hour < 9:
		return 40
	case hour >= 12 && hour < 14:
		return 50
	case hour >= 20 && hour < 23:
		return 65
	default:
		return 10
	}
}

// AddSample records a finished hour's message count, keeping the window bounded.
func (b *Baseline) AddSample(hour int, count float64) {
	if hour < 0 || hour > 23 {
		return
	}
	b.Samples[hour] = append(b.Samples[hour], count)
	if len(b.Samples[hour]) > baselineSamplesPerHour {
		b.Samples[hour] = b.Samples[hour][len(b.Samples[hour])-baselineSamplesPerHour:]
	}
}

// PerMinute returns the expected messages-per-minute for the hour.
func (b *Baseline) PerMinute(hour int) float64 {
	if hour < 0 || hour > 23 {
		return defaultHourlyMessages(0) / 60.0
	}
	samples := b.Samples[hour]
	if len(samples) == 0 {
		return defaultHourlyMessages(hour) / 60.0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples)) / 60.0
}

// ActivityMonitor tracks a group's message rate against its hourly baseline
// and answers "is this group unusually active right now". Not goroutine-safe
// on its own; the owning Group serializes access.
type ActivityMonitor struct {
	recent     []time.Time
	focus      float64
	boost      float64
	lastUpdate time.Time
	baseline   *Baseline
	hourStart  time.Time
	hourCount  int
}

func NewActivityMonitor(baseline *Baseline) *ActivityMonitor {
	if baseline == nil {
		baseline = &Baseline{}
	}
	return &ActivityMonitor{baseline: baseline}
}

// Observe records one message timestamp and refreshes the focus scalar.
func (m *ActivityMonitor) Observe(now time.Time) {
	m.recent = append(m.recent, now)
	if len(m.recent) > focusWindow {
		m.recent = m.recent[len(m.recent)-focusWindow:]
	}
	m.rollHour(now)
	m.hourCount++
	m.updateFocus(now)
}

// rollHour pushes the finished hour's count into the baseline when the clock
// crosses an hour boundary.
func (m *ActivityMonitor) rollHour(now time.Time) {
	top := now.Truncate(time.Hour)
	if m.hourStart.IsZero() {
		m.hourStart = top
		return
	}
	if top.After(m.hourStart) {
		m.baseline.AddSample(m.hourStart.Hour(), float64(m.hourCount))
		m.hourStart = top
		m.hourCount = 0
	}
}

func (m *ActivityMonitor) updateFocus(now time.Time) {
	var dt float64
	if !m.lastUpdate.IsZero() {
		dt = now.Sub(m.lastUpdate).Seconds()
		if dt < 0 {
			dt = 0
		}
	}
	m.lastUpdate = now

	perMinute := float64(m.countSince(now.Add(-time.Minute)))
	baseline := m.baseline.PerMinute(now.Hour())

	target := m.focus
	if perMinute > baseline*focusBaselineFactor {
		target += focusUpStep * (dt / 60.0)
	} else {
		target -= focusDownStep * (dt / 60.0)
	}
	m.focus += (target - m.focus) * focusSmoothing
	m.focus = clamp01(m.focus)

	m.boost *= mentionBoostDecay
	if m.boost < mentionBoostFloor {
		m.boost = 0
	}
}

// BoostMention raises attention transiently when the agent is addressed.
func (m *ActivityMonitor) BoostMention() {
	m.boost = mentionBoost
}

// Focus refreshes and returns the current focus scalar.
func (m *ActivityMonitor) Focus(now time.Time) float64 {
	m.updateFocus(now)
	return m.focus
}

// ShouldTrigger reports whether focus plus the mention boost crosses the
// proactive trigger level.
func (m *ActivityMonitor) ShouldTrigger(now time.Time) bool {
	return m.Focus(now)+m.boost > focusTriggerLevel
}

// Norm returns recent activity in [0,1]: messages within the window
// normalized against the assumed maximum rate.
func (m *ActivityMonitor) Norm(window time.Duration, now time.Time) float64 {
	count := float64(m.countSince(now.Add(-window)))
	max := assumedMaxPerMinute * window.Minutes()
	if max <= 0 {
		return 0
	}
	return clamp01(count / max)
}

func (m *ActivityMonitor) countSince(cutoff time.Time) int {
	n := 0
	for i := len(m.recent) - 1; i >= 0; i-- {
		if m.recent[i].Before(cutoff) {
			break
		}
		n++
	}
	return n
}

// GroupActivity blends four views of the conversation buffer into one 0..1
// activity level: multi-window message rate, user participation, message
// quality and topic continuity.
func GroupActivity(records []Record, now time.Time) float64 {
	if len(records) == 0 {
		return 0
	}

	windows := []struct {
		span   time.Duration
		weight float64
	}{
		{time.Minute, 0.4},
		{5 * time.Minute, 0.3},
		{30 * time.Minute, 0.2},
		{time.Hour, 0.1},
	}
	rate := 0.0
	for _, w := range windows {
		count := 0
		for _, r := range records {
			if now.Sub(r.At) < w.span {
				count++
			}
		}
		norm := clamp01(float64(count) / (w.span.Minutes() * assumedMaxPerMinute))
		rate += norm * w.weight
	}

	users := map[string]struct{}{}
	for _, r := range records {
		if r.UserID != "" && now.Sub(r.At) < 5*time.Minute {
			users[r.UserID] = struct{}{}
		}
	}
	participation := clamp01(float64(len(users)) / 10.0)

	quality := messageQuality(records, now)
	continuity := topicContinuity(records, now)

	return clamp01(rate*0.4 + participation*0.3 + quality*0.2 + continuity*0.1)
}

// messageQuality averages a cheap per-message quality score over the last
// five minutes: mid-length content, interactivity marks and emotion marks.
func messageQuality(records []Record, now time.Time) float64 {
	var sum float64
	var n int
	for _, r := range records {
		if now.Sub(r.At) >= 5*time.Minute {
			continue
		}
		n++
		score := 0.0
		length := len([]rune(strings.TrimSpace(r.Content)))
		switch {
		case length >= 5 && length <= 200:
			score += 0.3
		case length > 200:
			score += 0.1
		}
		if strings.ContainsAny(r.Content, "@?") || strings.Contains(r.Content, "？") {
			score += 0.4
		}
		if strings.ContainsAny(r.Content, "!！") || strings.ContainsAny(r.Content, "😊😂👍❤") {
			score += 0.3
		}
		sum += clamp01(score)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// topicContinuity looks for back-and-forth speaker patterns in the last ten
// minutes: consecutive turns by one user and A-B-A reply shapes.
func topicContinuity(records []Record, now time.Time) float64 {
	var seq []string
	for _, r := range records {
		if now.Sub(r.At) < 10*time.Minute && r.UserID != "" {
			seq = append(seq, r.UserID)
		}
	}
	if len(seq) < 3 {
		return 0
	}
	if len(seq) > 10 {
		seq = seq[len(seq)-10:]
	}
	score := 0.0
	for i := 0; i+1 < len(seq); i++ {
		if seq[i] == seq[i+1] {
			score += 0.2
		}
	}
	for i := 0; i+2 < len(seq); i++ {
		if seq[i] == seq[i+2] && seq[i] != seq[i+1] {
			score += 0.3
		}
	}
	return clamp01(score)
}

// ActiveUserCount returns distinct senders within the window.
func ActiveUserCount(records []Record, window time.Duration, now time.Time) int {
	users := map[string]struct{}{}
	for _, r := range records {
		if r.UserID != "" && now.Sub(r.At) < window {
			users[r.UserID] = struct{}{}
		}
	}
	return len(users)
}
