package protocol

import "strconv"

func line(s string) []byte {
	return append([]byte(s), Delimiter)
}

// NewAck acknowledges verb.
func NewAck(verb Verb) []byte {
	return line("ack " + verb.String())
}

func NewPong() []byte {
	return line("pong")
}

// NewInvalidCommand rejects an unknown verb by the name the client used.
func NewInvalidCommand(name string) []byte {
	return line("error Received invalid command: " + name)
}

// NewRecv announces and carries one delivered payload in a single frame.
func NewRecv(payload []byte) []byte {
	header := "recv " + strconv.Itoa(len(payload))
	frame := make([]byte, 0, len(header)+1+len(payload))
	frame = append(frame, header...)
	frame = append(frame, Delimiter)
	return append(frame, payload...)
}
