package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// CandidateItem is an announcement fetched during the current run and not yet recorded.
type CandidateItem struct {
	Identity    string
	Title       string
	BodyText    string
	SourceName  string
	Link        string
	PublishedAt time.Time
	// Fingerprint hashes the body as the source served it, before any enrichment.
	Fingerprint string
}

// StampFingerprint records the raw body hash once; later calls keep the first value.
func (c *CandidateItem) StampFingerprint() {
	if c.Fingerprint == "" {
		c.Fingerprint = Fingerprint(c.BodyText)
	}
}

// RawFingerprint returns the stamped hash or hashes the current body.
func (c CandidateItem) RawFingerprint() string {
	if c.Fingerprint != "" {
		return c.Fingerprint
	}
	return Fingerprint(c.BodyText)
}

// EmbeddingText is the text sent to the embedding gateway for this candidate.
func (c CandidateItem) EmbeddingText() string {
	return strings.TrimSpace(c.Title + " " + c.BodyText)
}

// ProcessedIdentity marks a candidate identity that has been fully handled.
type ProcessedIdentity struct {
	Identity    string
	ProcessedAt time.Time
}

// CanonicalIdentity derives the dedup key from the item link, falling back to
// the feed GUID. It returns "" when neither field is usable.
func CanonicalIdentity(link, guid string) string {
	if id := canonicalURL(link); id != "" {
		return id
	}
	if id := canonicalURL(guid); id != "" {
		return id
	}
	return strings.TrimSpace(guid)
}

func canonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
		u.RawPath = ""
	}
	if u.Path == "/" {
		u.Path = ""
	}

	return u.String()
}

// Fingerprint returns the hex SHA-256 of the raw body text.
func Fingerprint(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
