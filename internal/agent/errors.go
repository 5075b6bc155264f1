package agent

import "errors"

var (
	// ErrResponseBlocked reports that the model backend refused to return
	// a reply for a tool-result feedback send. The engine logs it and
	// ends the turn instead of failing the session.
	ErrResponseBlocked = errors.New("agent: response blocked")

	// ErrNoAnswer reports that the conversation loop ended without the
	// model producing a text answer. Callers should surface an error
	// envelope but keep the session alive.
	ErrNoAnswer = errors.New("agent: no answer produced")
)
