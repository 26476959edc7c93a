// Package auth answers whether a tenant domain may use the aggregation API.
//
// The allow-list itself is maintained by the admin side of the system; this
// package only reads it.
package auth

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/logging"
)

// Authorizer reports whether a tenant domain is on the allow-list.
type Authorizer interface {
	IsAuthorized(domain string) bool
}

// Record is one allow-list entry from the user file. Admin tooling has
// written either "domain" or "ssDomain" over time; both are honored.
type Record struct {
	Domain    string `json:"domain"`
	SSDomain  string `json:"ssDomain"`
	AccessKey string `json:"accessKey"`
}

// Matches reports whether the record covers the given domain.
func (r Record) Matches(domain string) bool {
	return (r.Domain != "" && strings.EqualFold(r.Domain, domain)) ||
		(r.SSDomain != "" && strings.EqualFold(r.SSDomain, domain))
}

// FileAuthorizer reads the user file on every check so admin updates take
// effect without a restart. The file is small; rereading is cheaper than
// cache invalidation plumbing across processes.
type FileAuthorizer struct {
	path   string
	logger zerolog.Logger
}

// NewFileAuthorizer creates an authorizer over the given JSON user file.
func NewFileAuthorizer(path string) *FileAuthorizer {
	return &FileAuthorizer{
		path:   path,
		logger: logging.NewLogger("auth"),
	}
}

// IsAuthorized reports whether domain appears in the user file. An
// unreadable or unparsable file denies everything.
func (a *FileAuthorizer) IsAuthorized(domain string) bool {
	records, err := a.load()
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("path", a.path).
			Msg("Failed to read authorized users file")
		return false
	}

	for _, r := range records {
		if r.Matches(domain) {
			return true
		}
	}
	return false
}

func (a *FileAuthorizer) load() ([]Record, error) {
	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, err
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// StaticAuthorizer allows a fixed set of domains. Intended for tests.
type StaticAuthorizer struct {
	domains map[string]struct{}
}

// NewStaticAuthorizer creates an authorizer over a fixed domain set.
func NewStaticAuthorizer(domains ...string) *StaticAuthorizer {
	set := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		set[strings.ToLower(d)] = struct{}{}
	}
	return &StaticAuthorizer{domains: set}
}

// IsAuthorized reports whether domain is in the set.
func (a *StaticAuthorizer) IsAuthorized(domain string) bool {
	_, ok := a.domains[strings.ToLower(domain)]
	return ok
}

// OpenAuthorizer allows every domain. It backs the --open-access escape
// hatch.
type OpenAuthorizer struct{}

// IsAuthorized always returns true.
func (OpenAuthorizer) IsAuthorized(string) bool {
	return true
}
