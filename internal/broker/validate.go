package broker

import (
	"net/url"

	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/namecheck"
)

const (
	minAPIKeyLen = 10
	maxAPIKeyLen = 500
)

// validatePreset enforces §4.3's field rules, returning a Validation
// error naming the first offending field.
func validatePreset(p Preset) error {
	if !namecheck.Valid(p.Name) {
		return &engineerr.Validation{Field: "name", Hint: "1-50 chars, letters/digits/underscore/hyphen only"}
	}
	if p.Model == "" {
		return &engineerr.Validation{Field: "model", Hint: "must not be empty"}
	}
	parsed, err := url.ParseRequestURI(p.BaseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &engineerr.Validation{Field: "base_url", Hint: "must be an absolute http/https URL"}
	}
	if len(p.APIKey) < minAPIKeyLen || len(p.APIKey) > maxAPIKeyLen {
		return &engineerr.Validation{Field: "api_key", Hint: "length must be between 10 and 500 characters"}
	}
	return nil
}
