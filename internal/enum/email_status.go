package enum

// EmailStatus is the lifecycle position of an email record. Values are
// ordered and a record only ever moves to a later one.
type EmailStatus string

const (
	EmailStatusIncomplete  EmailStatus = "incomplete"
	EmailStatusUnprocessed EmailStatus = "unprocessed"
	EmailStatusCategorized EmailStatus = "categorized"
	EmailStatusLabeled     EmailStatus = "labeled"
)

var emailStatusOrder = map[EmailStatus]int{
	EmailStatusIncomplete:  0,
	EmailStatusUnprocessed: 1,
	EmailStatusCategorized: 2,
	EmailStatusLabeled:     3,
}

func (s EmailStatus) String() string {
	return string(s)
}

func (s EmailStatus) IsValid() bool {
	_, ok := emailStatusOrder[s]
	return ok
}

// Next returns the status a successful stage moves the record to. The last
// status has no successor.
func (s EmailStatus) Next() (EmailStatus, bool) {
	switch s {
	case EmailStatusIncomplete:
		return EmailStatusUnprocessed, true
	case EmailStatusUnprocessed:
		return EmailStatusCategorized, true
	case EmailStatusCategorized:
		return EmailStatusLabeled, true
	}
	return "", false
}

// Before reports whether s comes strictly earlier than other.
func (s EmailStatus) Before(other EmailStatus) bool {
	a, okA := emailStatusOrder[s]
	b, okB := emailStatusOrder[other]
	return okA && okB && a < b
}
