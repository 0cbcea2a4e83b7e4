package domain

// ExitSignal pairs a position with the exit decision taken for it this
// cycle. Produced only by the exit evaluator, consumed only by the
// position closer within the same run; never persisted directly (the
// resulting Trade is persisted instead).
type ExitSignal struct {
	Position Position
	Reason   string
	Price    float64 // price at the moment of decision
	PnLPct   float64 // unrealized P&L pct at the moment of decision
}

// SoftExitCandidate describes a position whose soft trigger fired,
// structured for an AI-judgment request.
type SoftExitCandidate struct {
	Symbol   string  `json:"symbol"`
	PnLPct   float64 `json:"pnl_pct"`
	HoldDays int     `json:"hold_days"`
	Trigger  string  `json:"trigger"`
	Headline *string `json:"headline,omitempty"`
}

// AI judgment decisions.
const (
	JudgmentHold  = "hold"
	JudgmentClose = "close"
)

// ExitJudgment is an external AI verdict on a soft-exit candidate.
// A missing judgment for a symbol is treated identically to "close".
type ExitJudgment struct {
	Decision   string  `json:"decision"` // "hold" | "close"
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// Hold reports whether the judgment keeps the position open this cycle.
func (j ExitJudgment) Hold() bool {
	return j.Decision == JudgmentHold
}
