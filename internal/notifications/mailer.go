package notifications

import "context"

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers one message. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
