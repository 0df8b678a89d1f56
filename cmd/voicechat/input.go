package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/koscakluka/ema-session/core/protocol"
)

const (
	cmdInterrupt  = "/interrupt"
	cmdListen     = "/listen"
	cmdMute       = "/mute"
	cmdConnect    = "/connect"
	cmdDisconnect = "/disconnect"
	cmdSet        = "/set"
	cmdUnset      = "/unset"
	cmdHelp       = "/help"
	cmdQuit       = "/quit"
)

var commandArity = map[string]int{
	cmdInterrupt:  0,
	cmdListen:     0,
	cmdMute:       0,
	cmdConnect:    0,
	cmdDisconnect: 0,
	cmdSet:        2,
	cmdUnset:      1,
	cmdHelp:       0,
	cmdQuit:       0,
}

const helpText = "/interrupt  /listen  /mute  /connect  /disconnect  /set <param> <value>  /unset <param>  /quit"

var errEmptyInput = errors.New("nothing to send")

// userInput is one submitted line: either a slash command or a chat message.
type userInput struct {
	command string
	args    []string
	text    string
}

func (in userInput) isCommand() bool { return in.command != "" }

func parseInput(line string) (userInput, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return userInput{}, errEmptyInput
	}
	if !strings.HasPrefix(line, "/") {
		return userInput{text: line}, nil
	}

	fields := strings.Fields(line)
	command := strings.ToLower(fields[0])
	if command == "/exit" {
		command = cmdQuit
	}
	arity, ok := commandArity[command]
	if !ok {
		return userInput{}, fmt.Errorf("unknown command %s", fields[0])
	}
	args := fields[1:]
	if len(args) != arity {
		return userInput{}, fmt.Errorf("%s takes %d argument(s), got %d", command, arity, len(args))
	}
	return userInput{command: command, args: args}, nil
}

// applyParameter runs /set and /unset against params.
func applyParameter(params *protocol.ModelParameters, in userInput) error {
	name := strings.ReplaceAll(strings.ToLower(in.args[0]), "-", "_")

	if in.command == cmdUnset {
		return params.Unset(name)
	}

	value, err := strconv.ParseFloat(in.args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", name, in.args[1])
	}
	return params.Set(name, value)
}
