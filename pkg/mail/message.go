package mail

import "time"

// Attachment is a single named payload attached to a message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is a fully rendered notification, ready for the transport. It is
// built fresh per task outcome and never mutated afterwards.
type Message struct {
	Subject     string
	Body        string
	Attachments []Attachment
}

// Detail is one key/value pair of caller-supplied context. A slice of details
// keeps the caller's insertion order through rendering, which a map would not.
type Detail struct {
	Key   string
	Value any
}

// TaskReport carries everything the composer needs to know about a finished
// task. The notify package converts its captured outcome into one of these so
// that rendering stays decoupled from outcome capture.
type TaskReport struct {
	Title   string
	Success bool

	// Summary is the result description on success or the fault description
	// on failure.
	Summary string

	// Trace holds stack text on failure, empty otherwise.
	Trace string

	StartedAt time.Time
	EndedAt   time.Time

	CapturedOutput string
	Details        []Detail
}
