package captcha

// SolveStatus is the terminal status of one strategy attempt.
type SolveStatus int

const (
	StatusSolved SolveStatus = iota
	StatusNotFound
	StatusFailed
	StatusTimedOut
)

func (s SolveStatus) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is what a strategy attempt produced. Reason carries a short
// machine-readable tag for failed attempts, Err the underlying cause.
type Outcome struct {
	Status SolveStatus
	Reason string
	Err    error
}

// Solved reports a challenge token or clearance applied to the page.
func Solved() Outcome {
	return Outcome{Status: StatusSolved}
}

// NotFound reports that the challenge was gone by the time the strategy ran.
// It is not an error, the challenge counts as absent.
func NotFound() Outcome {
	return Outcome{Status: StatusNotFound}
}

// Failed reports an attempt that ran and did not produce a solution.
func Failed(reason string, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}

// TimedOut reports an attempt abandoned at its deadline. The work behind it
// may still finish out-of-band, its result is discarded.
func TimedOut() Outcome {
	return Outcome{Status: StatusTimedOut, Reason: "timeout"}
}
