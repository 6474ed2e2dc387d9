package dispatch

// Status is the terminal state of one invocation.
type Status int

const (
	Succeeded Status = iota + 1
	Failed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Aborted:
		return "aborted"
	}
	return "unknown"
}

// Outcome is the single result of a dispatch. Exactly one is produced per
// invocation.
type Outcome struct {
	InvocationID string
	Operation    string
	Status       Status
	// Payload is the extracted result on success.
	Payload any
	// Raw is the unmodified service response whenever the call was made.
	Raw   any
	Notes map[string]any
	// Err is set on Failed and Aborted outcomes.
	Err error
}

// FailedOutcome returns a failure outcome for errors raised outside the dispatcher,
// such as an unknown operation or a decryption failure.
func FailedOutcome(id, operation string, err error) *Outcome {
	return &Outcome{
		InvocationID: id,
		Operation:    operation,
		Status:       Failed,
		Err:          err,
	}
}

func (o *Outcome) Succeeded() bool { return o.Status == Succeeded }
