// Package splitter cuts text into ordered chunks of bounded size, preferring
// paragraph, line and word boundaries. Separators stay attached to the chunk they
// end, so without overlap the chunks concatenate back to the input.
package splitter

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the default number of characters per chunk
const DefaultChunkSize = 1000

// DefaultSeparators are tried in order, coarsest first. The empty separator
// splits between characters and always succeeds.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter splits text recursively on a list of separators
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk size in characters
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap repeats the last n characters of a chunk at the start of the next one
func WithOverlap(n int) Option {
	return func(s *Splitter) {
		if n >= 0 {
			s.overlap = n
		}
	}
}

// WithSeparators replaces the separator list
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = seps
		}
	}
}

// New creates a splitter with the given options
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for new content
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the configured chunk size
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Split cuts text into chunks. Empty text yields no chunks.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	chunks := s.split(text, s.separators)
	if s.overlap == 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		out[i] = tail(chunks[i-1], s.overlap) + chunks[i]
	}
	return out
}

func (s *Splitter) split(text string, seps []string) []string {
	if runeLen(text) <= s.chunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, seps)
	if sep == "" {
		return splitRunes(text, s.chunkSize)
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			curLen = 0
		}
	}

	for _, piece := range splitKeep(text, sep) {
		n := runeLen(piece)
		if n > s.chunkSize {
			flush()
			chunks = append(chunks, s.split(piece, rest)...)
			continue
		}
		if curLen+n > s.chunkSize {
			flush()
		}
		current.WriteString(piece)
		curLen += n
	}
	flush()

	return chunks
}

// pickSeparator returns the first separator present in text and the separators after it
func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// splitKeep splits text after each occurrence of sep, keeping sep on the left piece
func splitKeep(text, sep string) []string {
	var pieces []string
	for {
		i := strings.Index(text, sep)
		if i < 0 {
			break
		}
		pieces = append(pieces, text[:i+len(sep)])
		text = text[i+len(sep):]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

func splitRunes(text string, size int) []string {
	var chunks []string
	for text != "" {
		end, count := 0, 0
		for end < len(text) && count < size {
			_, w := utf8.DecodeRuneInString(text[end:])
			end += w
			count++
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}

func tail(s string, n int) string {
	if runeLen(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
