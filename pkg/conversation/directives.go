package conversation

import (
	"strings"
)

const (
	// DirectiveMarker prefixes every directive line of a message.
	DirectiveMarker = "_"
	// FinalToken used as a target value marks the author as leaving the conversation.
	FinalToken = "_FINAL"

	directiveKeyAuthor = "author"
	directiveKeyTarget = "target"
	directiveKeyFinal  = "final"
)

// Directives is the metadata carried by the directive block of a message.
//
// A message like
//
//	_AUTHOR=A
//	_TARGET=B
//	hello there
//
// parses into Directives{Author: "A", Target: &"B"}. A `_FINAL` line (with or
// without value), or `_TARGET=_FINAL`, marks the author as final.
type Directives struct {
	Author string  `json:"author" yaml:"author"`
	Target *string `json:"target,omitempty" yaml:"target,omitempty"`
	Final  *string `json:"final,omitempty" yaml:"final,omitempty"`
}

// IsFinal reports whether the message author has left the conversation.
func (d *Directives) IsFinal() bool {
	return d != nil && d.Final != nil
}

// Addresses reports whether the target value names the given agent.
// Target matching is a substring match, so `_TARGET=A, B` addresses both A and B.
func (d *Directives) Addresses(name string) bool {
	if d == nil || d.Target == nil {
		return false
	}
	return strings.Contains(*d.Target, name)
}

// Render writes the directive block back out in canonical order.
// ParseDirectives(d.Render()) yields d again.
func (d *Directives) Render() string {
	if d == nil {
		return ""
	}
	lines := []string{DirectiveMarker + "AUTHOR=" + d.Author}
	if d.Target != nil {
		lines = append(lines, DirectiveMarker+"TARGET="+*d.Target)
	}
	if d.Final != nil {
		if *d.Final == "" {
			lines = append(lines, DirectiveMarker+"FINAL")
		} else {
			lines = append(lines, DirectiveMarker+"FINAL="+*d.Final)
		}
	}
	return strings.Join(lines, "\n")
}

func isDirectiveLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), DirectiveMarker)
}

// ParseDirectives extracts the directive block of a message. It returns nil when
// the message carries no directives or no author: callers treat nil as an
// untagged message, not as an error.
func ParseDirectives(message string) *Directives {
	segments := map[string]string{}
	for _, line := range strings.Split(message, "\n") {
		if !isDirectiveLine(line) {
			continue
		}
		key, value := strings.TrimSpace(line), ""
		if idx := strings.IndexAny(key, "=:"); idx >= 0 {
			key, value = key[:idx], key[idx+1:]
		}
		key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), DirectiveMarker))
		value = strings.TrimSpace(value)
		segments[key] = value

		if key == directiveKeyTarget && value == FinalToken {
			segments[directiveKeyFinal] = ""
		}
	}

	author, ok := segments[directiveKeyAuthor]
	if !ok {
		return nil
	}

	ret := &Directives{Author: author}
	if target, ok := segments[directiveKeyTarget]; ok {
		ret.Target = &target
	}
	if final, ok := segments[directiveKeyFinal]; ok {
		ret.Final = &final
	}
	return ret
}

// Body returns the visible text of a message, with all directive lines removed.
func Body(message string) string {
	var lines []string
	for _, line := range strings.Split(message, "\n") {
		if !isDirectiveLine(line) {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// WithDirectives prefixes a body with a rendered directive block.
func WithDirectives(d *Directives, body string) string {
	if d == nil {
		return body
	}
	return d.Render() + "\n" + body
}
