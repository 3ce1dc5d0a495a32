package mind

import (
	"strings"
	"time"

	"github.com/keshon/heartflow/internal/config"
)

// MessageKind classifies a message for base interest weighting (heuristic, no LLM).
type MessageKind string

const (
	KindQuestion  MessageKind = "question"
	KindCommand   MessageKind = "command"
	KindEmotion   MessageKind = "emotion"
	KindGreeting  MessageKind = "greeting"
	KindResponse  MessageKind = "response"
	KindStatement MessageKind = "statement"
)

// DefaultInterest is returned whenever scoring cannot proceed. Evaluation
// must never fail the message pipeline.
const DefaultInterest = 0.5

var (
	questionStarters = []string{"what", "who", "when", "where", "why", "how", "can ", "could ", "would ", "should ", "is ", "are ", "do ", "does "}
	commandStarters  = []string{"/", "!"}
	commandWords     = []string{"please ", "help ", "run ", "start ", "execute "}
	greetingStarters = []string{"hi", "hello", "hey", "good morning", "good evening", "good night", "morning", "bye", "welcome back", "anyone here"}
	responseStarters = []string{"yes", "no", "ok", "okay", "yeah", "yep", "nope", "right", "exactly", "indeed", "sure", "true"}
	emotionMarks     = []string{"haha", "lol", "lmao", ":)", ":(", ":D", "xd", "😊", "😂", "🤣", "👍", "❤", "😭", "🤔"}

	interactionWords = []string{"reply", "answer", "tell", "explain", "describe", "introduce", "analyze", "review", "think", "opinion", "suggest", "recommend", "share", "discuss"}
	requestWords     = []string{"please", "could you", "can you", "would you", "help me"}
	secondPerson     = []string{"you", "your", "yours"}
)

// InterestScorer computes a multi-factor interest score for one incoming
// message. Deterministic for fixed inputs and a fixed now.
type InterestScorer struct {
	cfg config.EngineConfig
}

func NewInterestScorer(cfg config.EngineConfig) *InterestScorer {
	return &InterestScorer{cfg: cfg}
}

// ActivitySnapshot is what the scorer needs to know about the group at
// message time, derived from the conversation buffer.
type ActivitySnapshot struct {
	Heat          float64 // 0..1 multi-window group activity
	ActiveUsers   int     // distinct senders in the last 5 minutes
	LastMessageAt time.Time
}

// InterestFactors carries the independent sub-scores, each in [0,1].
type InterestFactors struct {
	MessageType        float64
	ContentLength      float64
	Interaction        float64
	PersonalRelevance  float64
	ContextRelevance   float64
	TimeOfDay          float64
	SenderRelationship float64
}

// Evaluate scores msg in [0,1]. A nil user state degrades to DefaultInterest
// instead of failing.
func (s *InterestScorer) Evaluate(msg Message, user *UserState, snap ActivitySnapshot, now time.Time) float64 {
	if user == nil {
		return DefaultInterest
	}
	f := s.Factors(msg, user, snap, now)

	wType := s.cfg.KeywordWeight
	wCtx := s.cfg.ContextWeight
	wSender := s.cfg.SenderWeight
	wTime := s.cfg.TimeWeight

	weighted := f.MessageType*wType +
		f.ContentLength*wCtx +
		f.Interaction*wSender +
		f.PersonalRelevance*wSender +
		f.ContextRelevance*wCtx +
		f.TimeOfDay*wTime +
		f.SenderRelationship*wSender

	total := wType + wCtx*2 + wSender*3 + wTime
	if total <= 0 {
		return DefaultInterest
	}
	score := weighted / total

	// Borderline messages get damped further so they do not accumulate into
	// constant chatter.
	if score < s.cfg.InterestThreshold {
		score *= s.cfg.InterestDamp
	}
	return clamp01(score)
}

// Factors exposes the sub-scores for logging and tests.
func (s *InterestScorer) Factors(msg Message, user *UserState, snap ActivitySnapshot, now time.Time) InterestFactors {
	return InterestFactors{
		MessageType:        messageTypeScore(ClassifyMessage(msg.Content)),
		ContentLength:      contentLengthScore(msg.Content),
		Interaction:        interactionScore(msg),
		PersonalRelevance:  personalRelevanceScore(user, now),
		ContextRelevance:   contextRelevanceScore(snap, now),
		TimeOfDay:          timeOfDayScore(now),
		SenderRelationship: senderRelationshipScore(user),
	}
}

// ClassifyMessage buckets content into a MessageKind via cheap pattern checks.
func ClassifyMessage(content string) MessageKind {
	c := strings.ToLower(strings.TrimSpace(content))
	if c == "" {
		return KindStatement
	}
	for _, p := range commandStarters {
		if strings.HasPrefix(c, p) {
			return KindCommand
		}
	}
	for _, p := range commandWords {
		if strings.Contains(c, p) {
			return KindCommand
		}
	}
	for _, p := range greetingStarters {
		if strings.HasPrefix(c, p) {
			return KindGreeting
		}
	}
	if strings.Contains(c, "?") || strings.Contains(c, "？") {
		return KindQuestion
	}
	for _, p := range questionStarters {
		if strings.HasPrefix(c, p) {
			return KindQuestion
		}
	}
	for _, p := range emotionMarks {
		if strings.Contains(c, p) {
			return KindEmotion
		}
	}
	first := strings.Fields(c)[0]
	for _, p := range responseStarters {
		if first == p {
			return KindResponse
		}
	}
	return KindStatement
}

func messageTypeScore(k MessageKind) float64 {
	switch k {
	case KindQuestion:
		return 0.8
	case KindCommand:
		return 0.9
	case KindEmotion:
		return 0.6
	case KindGreeting:
		return 0.4
	case KindResponse:
		return 0.5
	case KindStatement:
		return 0.3
	default:
		return 0.2
	}
}

// contentLengthScore is non-monotonic: very short scores low, mid-length
// highest, very long slightly lower (possible flooding).
func contentLengthScore(content string) float64 {
	n := len([]rune(strings.TrimSpace(content)))
	switch {
	case n == 0:
		return 0.0
	case n <= 5:
		return 0.2
	case n <= 15:
		return 0.4
	case n <= 50:
		return 0.7
	case n <= 100:
		return 0.9
	default:
		return 0.8
	}
}

func interactionScore(msg Message) float64 {
	c := strings.ToLower(msg.Content)
	score := 0.0
	if msg.Mentioned {
		score += 0.8
	}
	for _, w := range interactionWords {
		if strings.Contains(c, w) {
			score += 0.3
			break
		}
	}
	for _, w := range secondPerson {
		if containsWord(c, w) {
			score += 0.2
			break
		}
	}
	for _, w := range requestWords {
		if strings.Contains(c, w) {
			score += 0.2
			break
		}
	}
	return clamp01(score)
}

func personalRelevanceScore(user *UserState, now time.Time) float64 {
	score := 0.0
	if user.ReplyCount > 0 {
		freq := float64(user.ConversationStreak) / float64(user.ReplyCount)
		if v := freq * 0.3; v < 0.5 {
			score += v
		} else {
			score += 0.5
		}
	}
	if !user.LastInteractionAt.IsZero() {
		since := now.Sub(user.LastInteractionAt)
		switch {
		case since < 5*time.Minute:
			score += 0.3
		case since < time.Hour:
			score += 0.2
		case since < 24*time.Hour:
			score += 0.1
		}
	}
	score += user.PersonalInterest * 0.2
	return clamp01(score)
}

func contextRelevanceScore(snap ActivitySnapshot, now time.Time) float64 {
	score := 0.0
	switch {
	case snap.Heat > 0.7:
		score += 0.3
	case snap.Heat > 0.4:
		score += 0.2
	default:
		score += 0.1
	}
	switch {
	case snap.ActiveUsers > 10:
		score += 0.2
	case snap.ActiveUsers > 5:
		score += 0.1
	}
	if !snap.LastMessageAt.IsZero() {
		since := now.Sub(snap.LastMessageAt)
		switch {
		case since < time.Minute:
			score += 0.3
		case since < 5*time.Minute:
			score += 0.2
		default:
			score += 0.1
		}
	}
	return clamp01(score)
}

// timeOfDayScore: evening peak, deep-night trough. Local hour.
func timeOfDayScore(now time.Time) float64 {
	hour := now.Hour()
	switch {
	case hour >= 9 && hour <= 12:
		return 0.7
	case hour >= 14 && hour <= 18:
		return 0.8
	case hour >= 19 && hour <= 23:
		return 0.9
	case hour <= 6:
		return 0.4
	default:
		return 0.5
	}
}

func senderRelationshipScore(user *UserState) float64 {
	score := 0.0
	switch {
	case user.ConversationStreak > 5:
		score += 0.4
	case user.ConversationStreak > 2:
		score += 0.2
	case user.ConversationStreak > 0:
		score += 0.1
	}
	fatigue := clamp01(user.FatigueLevel)
	score += (1.0 - fatigue) * 0.3
	score += user.PersonalInterest * 0.3
	return clamp01(score)
}

func containsWord(haystack, word string) bool {
	for _, f := range strings.FieldsFunc(haystack, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?' || r == '\n'
	}) {
		if f == word {
			return true
		}
	}
	return false
}
