// Package judgment provides the AI exit-judgment collaborator. A judge
// reviews soft-exit candidates and may veto individual closes; hard
// exits never reach it.
package judgment

import (
	"context"

	"paper-trading-lab/internal/domain"
)

// Request carries one strategy's soft-exit candidates for review.
type Request struct {
	Strategy   string                     `json:"strategy"`
	Regime     string                     `json:"regime"`
	Candidates []domain.SoftExitCandidate `json:"candidates"`
}

// Judge returns a verdict per symbol. Symbols absent from the returned
// map default to close downstream; the judge can only save a position,
// never force-close one that did not trigger. A failed judge call
// returns an error and the caller treats all candidates as unjudged.
type Judge interface {
	JudgeExits(ctx context.Context, req Request) (map[string]domain.ExitJudgment, error)
}

// Static is a fixed-verdict judge for tests and offline runs.
type Static map[string]domain.ExitJudgment

// Compile-time interface check.
var _ Judge = (Static)(nil)

// JudgeExits returns the configured verdicts for the requested symbols.
func (s Static) JudgeExits(_ context.Context, req Request) (map[string]domain.ExitJudgment, error) {
	out := make(map[string]domain.ExitJudgment, len(req.Candidates))
	for _, c := range req.Candidates {
		if j, ok := s[c.Symbol]; ok {
			out[c.Symbol] = j
		}
	}
	return out, nil
}
