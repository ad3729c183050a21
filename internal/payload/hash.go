package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DomainPayload separates payload hashes from any other hash in the system.
// Version suffix enables future algorithm migration.
const DomainPayload = "paywatch/payload/v1"

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the content hash of the normalized payload.
// Two payloads that differ only in Unicode composition or surrounding
// whitespace hash identically.
func Hash(p Payload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("hash payload: nil payload")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Normalize(p)); err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}

	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return hashWithDomain(DomainPayload+"/"+string(p.Kind()), data), nil
}

// Normalize returns a copy of p with every text field NFC normalized and
// trimmed. Identifiers keep their case; currency codes are upper-cased.
func Normalize(p Payload) Payload {
	switch v := p.(type) {
	case JobPosting:
		v.Title = text(v.Title)
		v.Company = text(v.Company)
		v.Description = text(v.Description)
		v.Location = text(v.Location)
		v.Category = text(v.Category)
		v.ApplyURL = strings.TrimSpace(v.ApplyURL)
		return v
	case JobExtension:
		v.JobID = strings.TrimSpace(v.JobID)
		return v
	case Project:
		v.Name = text(v.Name)
		v.Description = text(v.Description)
		v.Category = text(v.Category)
		v.Currency = strings.ToUpper(strings.TrimSpace(v.Currency))
		return v
	case Contribution:
		v.ProjectID = strings.TrimSpace(v.ProjectID)
		v.Currency = strings.ToUpper(strings.TrimSpace(v.Currency))
		v.Message = text(v.Message)
		return v
	default:
		return p
	}
}

func text(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
