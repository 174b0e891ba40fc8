// Package packet defines the envelope exchanged between the game server and
// its clients and the length-prefixed framing used to put it on the wire.
//
// A frame is a 2-byte little-endian body length followed by that many bytes
// of UTF-8 JSON: {"command":"bye|message|input","message":"..."}.
package packet

import (
	"encoding/json"
	"fmt"
)

// Command identifies what a Packet asks the receiver to do.
type Command int

const (
	Bye     Command = iota // The sender is leaving; Message carries the reason
	Message                // Informational text for the receiver to display
	Input                  // A request for input, or a reply carrying input
)

var commandNames = map[Command]string{
	Bye:     "bye",
	Message: "message",
	Input:   "input",
}

// String returns the wire name of the command.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}

	return fmt.Sprintf("Command(%d)", int(c))
}

// Valid reports whether c is a member of the enumeration.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// ParseCommand returns the Command with the given wire name.
//
// Parameters:
//   - name: The wire name ("bye", "message" or "input")
//
// Returns:
//   - The matching Command
//   - An error wrapping ErrMalformed if name is not a known command
func ParseCommand(name string) (Command, error) {
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}

	return 0, fmt.Errorf("%w: unknown command %q", ErrMalformed, name)
}

// MarshalText implements encoding.TextMarshaler so commands are encoded by
// name rather than by ordinal.
func (c Command) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid command %d", int(c))
	}

	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := ParseCommand(string(text))
	if err != nil {
		return err
	}

	*c = parsed
	return nil
}

// Packet is the unit exchanged over a connection. Values are immutable once
// built; construct them with New.
type Packet struct {
	Command Command `json:"command"`
	Message string  `json:"message"`
}

// New builds a Packet. An empty message is allowed.
//
// Parameters:
//   - command: One of Bye, Message or Input
//   - message: Optional payload text
//
// Returns:
//   - The Packet value
func New(command Command, message string) Packet {
	return Packet{Command: command, Message: message}
}

// String returns a human readable rendering for diagnostics.
func (p Packet) String() string {
	return fmt.Sprintf("[Packet: Command=%s Message=%q]", p.Command, p.Message)
}

// UnmarshalJSON rejects bodies without a command so that a decode never
// produces a packet that silently defaulted to Bye.
func (p *Packet) UnmarshalJSON(data []byte) error {
	var raw struct {
		Command *Command `json:"command"`
		Message string   `json:"message"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if raw.Command == nil {
		return fmt.Errorf("%w: missing command", ErrMalformed)
	}

	*p = Packet{Command: *raw.Command, Message: raw.Message}
	return nil
}
