package analyzer

import (
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/YKarmar/JobMail/internal/types"
)

// ExtractCompany guesses the employer from the From header. The display
// name wins over the address domain.
func ExtractCompany(from, subject, body string) string {
	if m := senderNamePattern.FindStringSubmatch(from); m != nil {
		name := strings.TrimSpace(m[1])
		if name != "" && !slices.Contains(genericSenderNames, strings.ToLower(name)) {
			return name
		}
	}

	if m := senderDomainPattern.FindStringSubmatch(from); m != nil {
		domain := m[1]
		if !slices.Contains(personalMailDomains, strings.ToLower(domain)) {
			return titleCase(strings.ReplaceAll(domain, "-", " "))
		}
	}

	return UnknownCompany
}

// ExtractPosition guesses the job title from the subject line. body is
// accepted for symmetry with the other extractors and is not consulted.
func ExtractPosition(subject, body string) string {
	for _, re := range positionPatterns {
		m := re.FindStringSubmatch(subject)
		if m == nil {
			continue
		}
		position := strings.TrimSpace(m[1])
		if n := utf8.RuneCountInString(position); n > 3 && n < 100 {
			return position
		}
	}
	return UnknownPosition
}

// DetectSource names the job board that sent the message, or nil.
func DetectSource(from string) *string {
	lower := strings.ToLower(from)
	for _, src := range jobSources {
		if strings.Contains(lower, src.fragment) {
			name := src.name
			return &name
		}
	}
	return nil
}

func DetectStatus(subject, body string) types.Status {
	text := strings.ToLower(subject + " " + body)
	for _, rule := range statusRules {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				return rule.status
			}
		}
	}
	return types.StatusApplied
}

// ParseInternalDate converts a millisecond epoch string to local time.
// Empty or non-numeric input gives nil.
func ParseInternalDate(s string) *time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest: "acme labs2go" reads "Acme Labs2Go".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
