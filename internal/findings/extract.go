package findings

import (
	"encoding/json"
	"strings"
)

// maxRepairAttempts bounds how many cut points are tried when closing a
// truncated payload.
const maxRepairAttempts = 32

// ExtractJSON locates the JSON payload inside an analyzer response.
// A fenced block tagged json (or untagged) wins; otherwise the first
// findings-shaped value in the text is used: an object, or an array of
// objects. An empty array is only used when nothing better follows it, so
// bracketed prose such as "[1]" or "an empty list []" never replaces the real
// payload. A payload cut off mid-stream is repaired by dropping the
// incomplete tail and closing the brackets still open.
func ExtractJSON(raw string) ([]byte, bool) {
	for _, body := range fencedBlocks(raw) {
		if p, ok := firstValue(body); ok {
			return p, true
		}
	}
	return firstValue(raw)
}

// fencedBlocks returns the bodies of the ``` blocks tagged json or untagged,
// in order. A missing closing fence means the response was truncated and the
// body runs to the end.
func fencedBlocks(raw string) []string {
	var bodies []string
	rest := raw
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			return bodies
		}
		rest = rest[open+3:]
		tag := rest
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			tag = rest[:nl]
		}
		tag = strings.ToLower(strings.TrimSpace(tag))
		body, closed := rest, false
		if end := strings.Index(rest, "```"); end >= 0 {
			body, rest, closed = rest[:end], rest[end+3:], true
		}
		if tag == "" || strings.HasPrefix(tag, "json") || strings.HasPrefix(tag, "{") || strings.HasPrefix(tag, "[") {
			bodies = append(bodies, body)
		}
		if !closed {
			return bodies
		}
	}
}

func firstValue(s string) ([]byte, bool) {
	var emptyArray []byte
	for i := 0; i < len(s); i++ {
		if s[i] != '{' && s[i] != '[' {
			continue
		}
		p, ok := valueAt(s, i)
		if !ok {
			continue
		}
		switch shapeOf(p) {
		case shapeFindings:
			return p, true
		case shapeEmptyArray:
			if emptyArray == nil {
				emptyArray = p
			}
		}
	}
	return emptyArray, emptyArray != nil
}

type shape int

const (
	shapeOther shape = iota
	shapeEmptyArray
	shapeFindings
)

// shapeOf classifies a JSON value by whether it can carry findings.
func shapeOf(p []byte) shape {
	var v any
	if err := json.Unmarshal(p, &v); err != nil {
		return shapeOther
	}
	switch t := v.(type) {
	case map[string]any:
		return shapeFindings
	case []any:
		if len(t) == 0 {
			return shapeEmptyArray
		}
		for _, item := range t {
			if _, ok := item.(map[string]any); !ok {
				return shapeOther
			}
		}
		return shapeFindings
	}
	return shapeOther
}

type cutPoint struct {
	end     int
	closers string
}

// valueAt scans the bracketed value starting at s[start].
func valueAt(s string, start int) ([]byte, bool) {
	var (
		stack []byte
		cuts  []cutPoint
		inStr bool
		esc   bool
	)
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return nil, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				candidate := []byte(s[start : i+1])
				if json.Valid(candidate) {
					return candidate, true
				}
				return nil, false
			}
			cuts = append(cuts, cutPoint{end: i + 1, closers: closers(stack)})
		}
	}

	// Input ended with brackets still open.
	if !inStr {
		tail := strings.TrimRight(s[start:], " \t\r\n,")
		if candidate := []byte(tail + closers(stack)); json.Valid(candidate) {
			return candidate, true
		}
	}
	for k := len(cuts) - 1; k >= 0 && k >= len(cuts)-maxRepairAttempts; k-- {
		candidate := []byte(s[start:cuts[k].end] + cuts[k].closers)
		if json.Valid(candidate) {
			return candidate, true
		}
	}
	return nil, false
}

func closers(stack []byte) string {
	out := make([]byte, len(stack))
	for i := range stack {
		out[i] = stack[len(stack)-1-i]
	}
	return string(out)
}
