package switchboard

import (
	"io"
	"strconv"
	"strings"
)

// Chunk is one frame of a chunked transfer-encoded body.
//
// Length always equals len(Data). A final chunk carries no payload; its
// frame is the zero-length terminator.
type Chunk struct {
	Length   int
	Data     []byte
	Metadata string
	IsFinal  bool
}

// NewChunk returns a data chunk for p.
func NewChunk(p []byte) Chunk {
	return Chunk{Length: len(p), Data: p}
}

// FinalChunk returns the zero-length terminating chunk.
func FinalChunk() Chunk {
	return Chunk{IsFinal: true}
}

// WriteTo writes the wire frame for c:
//
//	<hex-length>[;metadata]\r\n<payload>\r\n
//
// and for a final chunk:
//
//	0[;metadata]\r\n\r\n
func (c Chunk) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	if c.IsFinal {
		sb.WriteString("0")
	} else {
		sb.WriteString(strconv.FormatInt(int64(len(c.Data)), 16))
	}
	if meta := sanitizeChunkMetadata(c.Metadata); meta != "" {
		sb.WriteString(";")
		sb.WriteString(meta)
	}
	sb.WriteString("\r\n")

	var total int64
	n, err := io.WriteString(w, sb.String())
	total += int64(n)
	if err != nil {
		return total, err
	}

	if !c.IsFinal && len(c.Data) > 0 {
		n, err = w.Write(c.Data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	n, err = io.WriteString(w, "\r\n")
	total += int64(n)
	return total, err
}

// sanitizeChunkMetadata drops characters that would break the frame line.
func sanitizeChunkMetadata(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, ";")
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return -1
		}
		return r
	}, s)
}
