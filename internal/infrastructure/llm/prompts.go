package llm

import (
	"fmt"
	"strings"

	"RegulatoryRadar/internal/domain"
)

func classificationPrompt(profile domain.TenantProfile, item domain.CandidateItem) string {
	context := profile.Attributes.ContextString()
	if context == "" {
		context = profile.Description
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Business context: %s\n", context)
	fmt.Fprintf(&sb, "Legal article: %q\n", item.Title)
	fmt.Fprintf(&sb, "Summary: %q\n\n", truncate(item.BodyText, 2000))
	sb.WriteString(`Analyze if this article is relevant to the business.
If not, respond with {"relevant": false}.
If relevant, respond in this JSON format:
{
  "relevant": true,
  "impact_level": "High" | "Medium" | "Low",
  "category": "Tax" | "Labor Law" | "Licensing" | "Other",
  "summary": "A concise summary of what the business owner needs to know."
}`)
	return sb.String()
}

func extractionPrompt(description string) string {
	return fmt.Sprintf(`Extract structured information from the business description below.
Respond in this JSON format:
{
  "industry": "...",
  "business_type": "...",
  "legal_form": "...",
  "location": "...",
  "keywords": ["...", "..."]
}

Description: %q`, description)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
