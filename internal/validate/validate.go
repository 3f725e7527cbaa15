// Package validate checks model output before it is trusted: JSON syntax,
// the exact response schema, and that every cited EID exists in the packet.
package validate

import (
	"errors"
	"strings"
)

// Kind classifies a validation issue.
type Kind string

const (
	MalformedJSON     Kind = "malformed_json"
	SchemaViolation   Kind = "schema_violation"
	EvidenceViolation Kind = "evidence_violation"
)

// Issue is one problem found in a response.
type Issue struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Error is a rejected response. Message joins every issue with "; ".
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsKind reports whether err is a validation Error of kind k.
func IsKind(err error, k Kind) bool {
	var verr *Error
	return errors.As(err, &verr) && verr.Kind == k
}

// Result is the outcome of Validate. A rejected result has no Response and
// at least one issue, all of the same kind. An accepted result may still
// carry evidence issues when validation is not strict.
type Result struct {
	Response *Response
	Issues   []Issue
	Rejected bool
}

// Err returns the rejection as an *Error, or nil when accepted.
func (r Result) Err() error {
	if !r.Rejected {
		return nil
	}
	msgs := make([]string, len(r.Issues))
	for i, is := range r.Issues {
		msgs[i] = is.Message
	}
	return &Error{Kind: r.Issues[0].Kind, Message: strings.Join(msgs, "; ")}
}

func reject(kind Kind, messages ...string) Result {
	issues := make([]Issue, len(messages))
	for i, m := range messages {
		issues[i] = Issue{Kind: kind, Message: m}
	}
	return Result{Issues: issues, Rejected: true}
}

// Validate runs every check on raw model text. Evidence aliases in the
// returned Response are already normalized.
func Validate(text string, ev Evidence, strict bool) Result {
	doc, err := Parse(text)
	if err != nil {
		return reject(MalformedJSON, err.Error())
	}
	resp, err := CheckSchema(doc)
	if err != nil {
		return reject(SchemaViolation, err.Error())
	}
	issues := EnforceEvidence(resp, ev)
	if len(issues) > 0 && strict {
		return reject(EvidenceViolation, issues...)
	}
	res := Result{Response: resp}
	for _, m := range issues {
		res.Issues = append(res.Issues, Issue{Kind: EvidenceViolation, Message: m})
	}
	return res
}
