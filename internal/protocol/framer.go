package protocol

import "bytes"

// minRetain is the buffer capacity a framer may keep between frames
// regardless of its line bound.
const minRetain = 64 << 10

// Framer accumulates stream chunks and cuts them into frames. The current
// terminator is either the Delimiter byte or a fixed byte count; switching
// terminators is how callers switch between command and payload mode.
type Framer struct {
	buf       []byte
	delimited bool
	want      int
	maxLine   int
}

// NewFramer returns a framer waiting for a command line. maxLine bounds an
// unterminated line; 0 disables the bound.
func NewFramer(maxLine int) *Framer {
	return &Framer{delimited: true, maxLine: maxLine}
}

func (f *Framer) Write(p []byte) {
	f.buf = append(f.buf, p...)
}

// ExpectLine makes the next frame end at the next Delimiter.
func (f *Framer) ExpectLine() {
	f.delimited = true
	f.want = 0
}

// ExpectBytes makes the next frame exactly n bytes long.
func (f *Framer) ExpectBytes(n int) {
	f.delimited = false
	f.want = n
}

// Line reports whether the framer is waiting for a command line.
func (f *Framer) Line() bool {
	return f.delimited
}

// Buffered returns the number of bytes not yet cut into a frame.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Next cuts the next frame if the current terminator is satisfied. Line
// frames do not include the Delimiter. The returned slice is owned by the
// caller.
func (f *Framer) Next() ([]byte, bool, error) {
	if f.delimited {
		idx := bytes.IndexByte(f.buf, Delimiter)
		if idx < 0 {
			if f.maxLine > 0 && len(f.buf) > f.maxLine {
				return nil, false, ErrLineTooLong
			}
			return nil, false, nil
		}
		if f.maxLine > 0 && idx > f.maxLine {
			return nil, false, ErrLineTooLong
		}
		return f.cut(idx, 1), true, nil
	}

	if len(f.buf) < f.want {
		return nil, false, nil
	}
	return f.cut(f.want, 0), true, nil
}

func (f *Framer) cut(n, skip int) []byte {
	frame := make([]byte, n)
	copy(frame, f.buf[:n])
	rest := copy(f.buf, f.buf[n+skip:])
	f.buf = f.buf[:rest]
	f.shrink()
	return frame
}

// shrink drops a backing array grown far past what the framer normally
// holds, typically by a large payload.
func (f *Framer) shrink() {
	limit := max(4*f.maxLine, minRetain)
	if cap(f.buf) <= limit || len(f.buf) > limit/2 {
		return
	}
	f.buf = append(make([]byte, 0, len(f.buf)), f.buf...)
}

// Reset drops buffered data and waits for a command line again.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.shrink()
	f.ExpectLine()
}
