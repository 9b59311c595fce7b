package checkout

type Stage string

const (
	StageEmptyCart           Stage = "EMPTY_CART"
	StageSelectingAddress    Stage = "SELECTING_ADDRESS"
	StageCalculatingShipping Stage = "CALCULATING_SHIPPING"
	StageReviewingSummary    Stage = "REVIEWING_SUMMARY"
	StageSubmitting          Stage = "SUBMITTING"
	StageConfirmed           Stage = "CONFIRMED"
	StageFailed              Stage = "FAILED"
)

var transitions = map[Stage][]Stage{
	StageEmptyCart:           {StageSelectingAddress},
	StageSelectingAddress:    {StageCalculatingShipping, StageEmptyCart},
	StageCalculatingShipping: {StageCalculatingShipping, StageReviewingSummary, StageEmptyCart},
	StageReviewingSummary:    {StageCalculatingShipping, StageSubmitting, StageEmptyCart},
	StageSubmitting:          {StageConfirmed, StageFailed},
	StageFailed:              {StageSubmitting, StageCalculatingShipping, StageEmptyCart},
}

// CanTransitionTo reports whether the flow may move from one stage to the
// next. Submitting is only reachable from ReviewingSummary or from a failed
// submission being retried.
func CanTransitionTo(from, to Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Stage) IsTerminal() bool {
	return s == StageConfirmed
}

// String representation (for logging)
func (s Stage) String() string {
	return string(s)
}
