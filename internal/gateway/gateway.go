package gateway

import "context"

// Responder is the agent surface a gateway talks to.
type Responder interface {
	// Respond handles an ad-hoc chat message.
	Respond(ctx context.Context, chatID, text string, narrate func(string)) (string, error)
	// Research runs the full plan-driven workflow for a query.
	Research(ctx context.Context, chatID, query string, narrate func(string)) (string, error)
}

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	// Start begins the message listening loop
	Start() error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway
	Stop() error
}

const researchPrefix = "/research "
