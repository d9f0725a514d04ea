package domain

// Prompt is the message pair sent to a generation backend.
type Prompt struct {
	System string
	User   string
}
