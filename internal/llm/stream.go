package llm

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"github.com/kalambet/ragent/internal/failure"
)

// doneSentinel is the payload that ends a streamed completion.
const doneSentinel = "[DONE]"

// Stream is a lazy, single-pass sequence of text fragments. Each item is
// either a fragment or a failure; a failure does not end the sequence, the
// consumer decides whether to keep calling Next.
//
//	for s.Next() {
//		if err := s.Err(); err != nil { ... }
//		fmt.Print(s.Text())
//	}
type Stream struct {
	next   func() (text string, ok bool, err error)
	closer io.Closer

	text string
	err  error
	done bool

	closeOnce sync.Once
	closeErr  error
}

// StaticStream returns a stream producing text as its only fragment.
func StaticStream(text string) *Stream {
	sent := false
	return &Stream{
		next: func() (string, bool, error) {
			if sent {
				return "", false, nil
			}
			sent = true
			return text, true, nil
		},
	}
}

// newEventStream decodes Server-Sent-Event frames from body. body is closed
// when the stream ends or Close is called.
func newEventStream(body io.ReadCloser) *Stream {
	fr := &frameReader{r: bufio.NewReader(body)}
	return &Stream{
		closer: body,
		next: func() (string, bool, error) {
			for {
				payload, err := fr.next()
				if errors.Is(err, io.EOF) {
					return "", false, nil
				}
				if err != nil {
					// The body is unusable after a read error; report it once
					// and end on the following call.
					fr.broken = true
					return "", true, failure.Wrap(failure.Transport, "reading stream", err)
				}
				if payload == doneSentinel {
					return "", false, nil
				}

				var chunk StreamChunk
				if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
					return "", true, failure.Wrap(failure.Protocol, "decoding stream frame", err)
				}
				if len(chunk.Choices) == 0 {
					continue
				}
				content := chunk.Choices[0].Delta.Content
				if content == nil || *content == "" {
					continue
				}
				return *content, true, nil
			}
		},
	}
}

// Next advances to the next item. It returns false once the sequence is
// exhausted, after which the underlying body has been closed.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	text, ok, err := s.next()
	if !ok {
		s.done = true
		s.text, s.err = "", nil
		s.Close()
		return false
	}
	s.text, s.err = text, err
	return true
}

// Text returns the current fragment. It is empty when Err is non-nil.
func (s *Stream) Text() string {
	return s.text
}

// Err returns the failure carried by the current item, if any.
func (s *Stream) Err() error {
	return s.err
}

// Close releases the underlying body. Subsequent calls to Next return false.
func (s *Stream) Close() error {
	s.done = true
	s.closeOnce.Do(func() {
		if s.closer != nil {
			s.closeErr = s.closer.Close()
		}
	})
	return s.closeErr
}

// All returns the remaining items as an iterator. Breaking out of the loop
// closes the stream.
func (s *Stream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()
		for s.Next() {
			if !yield(s.Text(), s.Err()) {
				return
			}
		}
	}
}

// Collect drains the stream and returns the concatenated text. It stops at
// the first failure and returns it with the text gathered so far.
func (s *Stream) Collect() (string, error) {
	var sb strings.Builder
	for text, err := range s.All() {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// frameReader splits an SSE body into frame payloads. Multiple data lines in
// one frame are joined with "\n"; comments and other fields are ignored.
type frameReader struct {
	r      *bufio.Reader
	broken bool
}

func (f *frameReader) next() (string, error) {
	if f.broken {
		return "", io.EOF
	}

	var (
		data    []string
		hasData bool
	)
	for {
		line, err := f.r.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		atEOF := err != nil

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if hasData {
				return strings.Join(data, "\n"), nil
			}
			if atEOF {
				return "", io.EOF
			}
			continue
		}

		if value, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			value = bytes.TrimPrefix(value, []byte(" "))
			data = append(data, string(value))
			hasData = true
		}

		if atEOF {
			if hasData {
				return strings.Join(data, "\n"), nil
			}
			return "", io.EOF
		}
	}
}
