package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"RegulatoryRadar/internal/domain"
)

type rawVerdict struct {
	Relevant    *bool  `json:"relevant"`
	ImpactLevel string `json:"impact_level"`
	Category    string `json:"category"`
	Summary     string `json:"summary"`
}

// ParseVerdict maps model output onto the verdict union. It never fails:
// anything that is not a well-formed verdict becomes Malformed.
func ParseVerdict(content string) domain.Verdict {
	payload, err := cleanJSON(content)
	if err != nil {
		return domain.Malformed(err.Error())
	}

	var rv rawVerdict
	if err := json.Unmarshal(payload, &rv); err != nil {
		return domain.Malformed(fmt.Sprintf("decode verdict: %v", err))
	}
	if rv.Relevant == nil {
		return domain.Malformed("relevant flag missing")
	}
	if !*rv.Relevant {
		return domain.NotRelevant(payload)
	}

	impact, ok := domain.ParseImpactLevel(rv.ImpactLevel)
	if !ok {
		return domain.Malformed(fmt.Sprintf("unknown impact_level %q", rv.ImpactLevel))
	}

	summary := strings.TrimSpace(rv.Summary)
	if summary == "" {
		return domain.Malformed("summary missing")
	}

	category := strings.TrimSpace(rv.Category)
	if category == "" {
		category = domain.DefaultCategory
	}

	return domain.Verdict{
		Kind:     domain.VerdictRelevant,
		Impact:   impact,
		Category: category,
		Summary:  summary,
		Raw:      payload,
	}
}

// ParseAttributes decodes extracted profile attributes.
func ParseAttributes(content string) (domain.ProfileAttributes, error) {
	payload, err := cleanJSON(content)
	if err != nil {
		return domain.ProfileAttributes{}, err
	}

	var attrs domain.ProfileAttributes
	if err := json.Unmarshal(payload, &attrs); err != nil {
		return domain.ProfileAttributes{}, fmt.Errorf("decode attributes: %w", err)
	}
	if attrs.IsZero() {
		return domain.ProfileAttributes{}, errors.New("no attributes extracted")
	}
	return attrs, nil
}

// cleanJSON strips markdown fences and surrounding prose and returns the
// compacted object.
func cleanJSON(content string) (json.RawMessage, error) {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, errors.New("no json object in response")
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s[start:end+1])); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	return buf.Bytes(), nil
}
