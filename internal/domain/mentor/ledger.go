package mentor

const (
	AttemptReward = 5
	CodeReward    = 5
)

type Tier string

const (
	TierLearner Tier = "Learner"
	TierBronze  Tier = "Bronze"
	TierSilver  Tier = "Silver"
	TierGold    Tier = "Gold"
)

// Ledger counts learner effort. Points are cumulative and survive session resets.
type Ledger struct {
	Points   int `json:"points"`
	Attempts int `json:"attempts"`
}

// RecordAttempt credits one attempt when the student turn carried text or an attachment.
func (l *Ledger) RecordAttempt(hasContent bool) {
	if !hasContent {
		return
	}
	l.Attempts++
	l.Points += AttemptReward
}

// RecordCodeGenerationSuccess credits one accepted code-generation result. Not idempotent.
func (l *Ledger) RecordCodeGenerationSuccess() {
	l.Points += CodeReward
}

func (l Ledger) Tier() Tier {
	switch {
	case l.Points >= 50:
		return TierGold
	case l.Points >= 25:
		return TierSilver
	case l.Points >= 10:
		return TierBronze
	default:
		return TierLearner
	}
}
