// Package protocol implements the bus wire format: newline terminated command
// lines and length prefixed binary payloads sharing one framing buffer.
package protocol

import "errors"

// Verb identifies a client command.
type Verb byte

const (
	Unknown Verb = iota
	Send         // publish the following payload
	Sub          // add subscriptions
	Unsub        // remove subscriptions
	Ping         // liveness check
	Listen       // enable inbound delivery
	Unlisten     // disable inbound delivery
	Error        // client side diagnostic
)

// VerbMap maps each Verb to its wire spelling.
var VerbMap = map[Verb]string{
	Send:     "send",
	Sub:      "sub",
	Unsub:    "unsub",
	Ping:     "ping",
	Listen:   "listen",
	Unlisten: "unlisten",
	Error:    "error",
}

var verbByName = func() map[string]Verb {
	m := make(map[string]Verb, len(VerbMap))
	for verb, name := range VerbMap {
		m[name] = verb
	}
	return m
}()

func (verb Verb) String() string {
	if name, ok := VerbMap[verb]; ok {
		return name
	}
	return "unknown"
}

// Delimiter terminates every command line in both directions.
const Delimiter = '\n'

var (
	ErrEmptyCommand    = errors.New("empty command")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidSize     = errors.New("invalid payload size")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrLineTooLong     = errors.New("command line too long")
)

// Command is one tokenized command line.
type Command struct {
	Verb Verb
	Name string   // first token as sent by the client
	Args []string // remaining tokens
	Raw  string   // the untokenized line
}
