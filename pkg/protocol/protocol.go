package protocol

import (
	"fmt"
	"strings"
)

// CommandKind is the closed set of wire commands, decided at parse time.
type CommandKind int

const (
	CmdUnknown CommandKind = iota
	CmdPush
	CmdPull
)

func (k CommandKind) String() string {
	switch k {
	case CmdPush:
		return "PUSH"
	case CmdPull:
		return "PULL"
	default:
		return "UNKNOWN"
	}
}

// Command is one parsed client request. Arg is the message text for
// PUSH and the consumer identity for PULL.
type Command struct {
	Kind CommandKind
	Arg  string
}

// ProtocolError reports a malformed line, an unknown command token or a
// missing argument. It never reaches storage.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}

// ParseCommand parses one newline-stripped request line.
//
//	PUSH <message>      message is everything after the first space
//	PULL <consumerId>
//
// The command token is case-insensitive.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, &ProtocolError{Reason: "empty command"}
	}

	token, arg, hasArg := strings.Cut(line, " ")

	var kind CommandKind
	switch strings.ToUpper(token) {
	case "PUSH":
		kind = CmdPush
	case "PULL":
		kind = CmdPull
	default:
		return Command{}, &ProtocolError{Reason: fmt.Sprintf("unknown command: %s", token)}
	}

	if !hasArg || arg == "" {
		return Command{}, &ProtocolError{Reason: fmt.Sprintf("%s requires an argument", kind)}
	}

	return Command{Kind: kind, Arg: arg}, nil
}

func FormatOK() string {
	return "OK\n"
}

func FormatMsg(message string) string {
	return fmt.Sprintf("MSG %s\n", message)
}

func FormatEmpty() string {
	return "EMPTY\n"
}

func FormatError(reason string) string {
	return fmt.Sprintf("ERR %s\n", reason)
}
