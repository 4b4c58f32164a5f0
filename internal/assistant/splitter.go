package assistant

import "strings"

// Splitter turns streamed text into sentences. A sentence ends at a run of
// spaces that follows '.', '!' or '?'.
type Splitter struct {
	buf string
}

// Feed appends delta and returns every sentence completed by it
func (s *Splitter) Feed(delta string) []string {
	s.buf += delta

	var out []string
	for {
		i := boundary(s.buf)
		if i < 0 {
			return out
		}
		out = append(out, strings.TrimSpace(s.buf[:i]))

		j := i
		for j < len(s.buf) && s.buf[j] == ' ' {
			j++
		}
		s.buf = s.buf[j:]
	}
}

// Flush returns the unterminated remainder, if any
func (s *Splitter) Flush() (string, bool) {
	rest := strings.TrimSpace(s.buf)
	s.buf = ""
	return rest, rest != ""
}

func boundary(s string) int {
	for i := 1; i < len(s); i++ {
		if s[i] == ' ' && strings.IndexByte(".!?", s[i-1]) >= 0 {
			return i
		}
	}
	return -1
}
