// Package logparse normalises the free-form vocabulary found in query logs and
// in user-supplied filters.
package logparse

import (
	"regexp"
	"strings"

	"github.com/miekg/dns"

	"github.com/tinytelemetry/querylens/internal/model"
)

// ResponseTypeRegex matches a response-type tag at the start of a reason string.
var ResponseTypeRegex = regexp.MustCompile(`(?i)^\s*(RESOLVED|BLOCKED|CACHED|CONDITIONAL|CUSTOMDNS|HOSTSFILE|SPECIAL|FILTERED|NOTFQDN)\b`)

// NormalizeResponseType maps common spellings to the canonical response type.
// Unknown values yield "".
func NormalizeResponseType(s string) string {
	normalized := strings.ToUpper(strings.TrimSpace(s))

	switch normalized {
	case model.ResponseResolved, "RESOLVE", "UPSTREAM":
		return model.ResponseResolved
	case model.ResponseBlocked, "BLOCK", "DENIED":
		return model.ResponseBlocked
	case model.ResponseCached, "CACHE":
		return model.ResponseCached
	case model.ResponseConditional, "COND":
		return model.ResponseConditional
	case model.ResponseCustomDNS, "CUSTOM", "CUSTOM_DNS":
		return model.ResponseCustomDNS
	case model.ResponseHostsFile, "HOSTS", "HOSTS_FILE":
		return model.ResponseHostsFile
	case model.ResponseSpecial:
		return model.ResponseSpecial
	case model.ResponseFiltered, "FILTER":
		return model.ResponseFiltered
	case model.ResponseNotFQDN, "NOT_FQDN":
		return model.ResponseNotFQDN
	}
	return ""
}

// ResponseTypeFromReason extracts the response type a reason string starts
// with, e.g. "BLOCKED (ads.list)" yields BLOCKED.
func ResponseTypeFromReason(reason string) string {
	m := ResponseTypeRegex.FindStringSubmatch(reason)
	if len(m) > 1 {
		return strings.ToUpper(m[1])
	}
	return ""
}

// NormalizeQuestionType validates a DNS record type name and returns its
// canonical mnemonic ("aaaa" -> "AAAA").
func NormalizeQuestionType(s string) (string, bool) {
	t, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(s))]
	if !ok || t == dns.TypeNone {
		return "", false
	}
	return dns.TypeToString[t], true
}
