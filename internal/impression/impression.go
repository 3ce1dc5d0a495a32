// Package impression abstracts the per-user affinity source. The engine only
// needs a 0..1 score and a few remembered lines; a relationship system can
// plug in behind this interface later.
package impression

import "context"

// Neutral is the score used when nothing is known about a user.
const Neutral = 0.5

type Provider interface {
	// Score returns the agent's current affinity for the user in [0,1].
	Score(ctx context.Context, groupID, userID string) (float64, error)
	// Recall returns remembered lines about the user for prompt context.
	Recall(ctx context.Context, groupID, userID string) ([]string, error)
}

// Noop answers every query with neutral defaults. The engine must behave
// sensibly with this wired in; a failing real provider degrades to the same
// values.
type Noop struct{}

func (Noop) Score(ctx context.Context, groupID, userID string) (float64, error) {
	return Neutral, nil
}

func (Noop) Recall(ctx context.Context, groupID, userID string) ([]string, error) {
	return nil, nil
}

// SafeScore queries p and falls back to Neutral on any error, so impression
// lookups can never fail the message pipeline.
func SafeScore(ctx context.Context, p Provider, groupID, userID string) float64 {
	if p == nil {
		return Neutral
	}
	score, err := p.Score(ctx, groupID, userID)
	if err != nil {
		return Neutral
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
