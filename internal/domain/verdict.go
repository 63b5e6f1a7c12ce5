package domain

import "encoding/json"

// VerdictKind tags the oracle outcome.
type VerdictKind string

const (
	VerdictRelevant    VerdictKind = "relevant"
	VerdictNotRelevant VerdictKind = "not_relevant"
	VerdictMalformed   VerdictKind = "malformed"
)

// Verdict is the oracle's judgement about one candidate for one tenant.
// Impact, Category and Summary are set only for VerdictRelevant; Reason only
// for VerdictMalformed.
type Verdict struct {
	Kind     VerdictKind
	Impact   ImpactLevel
	Category string
	Summary  string
	Raw      json.RawMessage
	Reason   string
}

// NotRelevant builds a discard verdict.
func NotRelevant(raw json.RawMessage) Verdict {
	return Verdict{Kind: VerdictNotRelevant, Raw: raw}
}

// Malformed builds a verdict for output that could not be interpreted.
func Malformed(reason string) Verdict {
	return Verdict{Kind: VerdictMalformed, Reason: reason}
}
