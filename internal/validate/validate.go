// Package validate decides whether a line of user input selects something:
// either a 1-based index or one of a fixed set of literal aliases.
package validate

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags an Outcome.
type Kind int

const (
	Rejected Kind = iota
	Index
	Literal
)

// Outcome is the result of Validate. Exactly one of Index, Literal or
// Reason is meaningful, depending on Kind.
type Outcome struct {
	Kind    Kind
	Index   int
	Literal string
	Reason  string
}

func (o Outcome) Accepted() bool {
	return o.Kind != Rejected
}

// Validate checks input against aliases and, when numeric is set, against
// the range 1..max. An alias match always wins and reports the alias as
// declared, so callers can use it as a lookup key.
func Validate(input string, numeric bool, max int, aliases []string) Outcome {
	for _, alias := range aliases {
		if strings.EqualFold(input, alias) {
			return Outcome{Kind: Literal, Literal: alias}
		}
	}

	list := strings.Join(aliases, ",")
	if !numeric {
		return reject(`"%s" is not a member of the list [%s]`, input, list)
	}

	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return reject(`"%s" is not a member of the list [%s] and cannot be converted to a number`, input, list)
	}
	if n > max {
		return reject("%s is too large, expected 1 - %d", input, max)
	}
	if n < 1 {
		return reject("%s is too small, expected 1 - %d", input, max)
	}
	return Outcome{Kind: Index, Index: n}
}

func reject(format string, a ...interface{}) Outcome {
	return Outcome{Kind: Rejected, Reason: fmt.Sprintf(format, a...)}
}
