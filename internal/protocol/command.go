package protocol

import (
	"fmt"
	"strconv"

	"github.com/google/shlex"
)

// ParseCommand tokenizes a command line with shell-like quoting.
func ParseCommand(line []byte) (*Command, error) {
	raw := string(line)
	tokens, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to tokenize command %q: %w", raw, err)
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyCommand
	}

	return &Command{
		Verb: verbByName[tokens[0]],
		Name: tokens[0],
		Args: tokens[1:],
		Raw:  raw,
	}, nil
}

// ParseSend reads the payload size and destination channels of a send
// command. maxSize bounds the size; 0 disables the bound.
func ParseSend(cmd *Command, maxSize int) (int, []string, error) {
	if len(cmd.Args) == 0 {
		return 0, nil, fmt.Errorf("send: %w: size", ErrMissingArgument)
	}
	size, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidSize, cmd.Args[0])
	}
	if size < 0 {
		return 0, nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	if maxSize > 0 && size > maxSize {
		return 0, nil, fmt.Errorf("%w: %d exceeds %d", ErrPayloadTooLarge, size, maxSize)
	}
	return size, ChannelNames(cmd.Args[1:]), nil
}

// ChannelNames drops empty tokens, which can result from quoting.
func ChannelNames(args []string) []string {
	names := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != "" {
			names = append(names, arg)
		}
	}
	return names
}
