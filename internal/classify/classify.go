// Package classify turns raw availability text into a three-way NHS
// acceptance status. Tier order is load-bearing: denial phrases win over
// limited phrases, which win over acceptance phrases.
package classify

import (
	"regexp"
	"strings"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Tier 1: denies routine NHS acceptance or restricts to specialist/referral care.
var notAcceptingRes = []*regexp.Regexp{
	regexp.MustCompile(`\bthis dentist does not currently accept new nhs patients for routine dental care\b`),
	regexp.MustCompile(`\bnot\s+accept(?:ing|s)\s+new\s+nhs\s+patients\b`),
	regexp.MustCompile(`\bno\s+longer\s+accept(?:ing|s)\b.*\bnhs\b`),
	regexp.MustCompile(`\bclosed\s+to\s+nhs\b`),
	regexp.MustCompile(`\bprivate\s+only\b`),
	regexp.MustCompile(`\bonly\s+taking\s+new\s+nhs\s+patients\s+for\s+specialist\s+dental\s+care\b.*\breferral\b`),
	regexp.MustCompile(`\bonly\s+accepts?.*\bspecialist\b.*\breferral\b`),
}

// Tier 2: conditional or limited acceptance.
var limitedRes = []*regexp.Regexp{
	regexp.MustCompile(`\bwhen\s+availability\s+allows\b.*\baccepts?\s+new\s+nhs\s+patients\b`),
	regexp.MustCompile(`\bchildren\s+only\b`),
	regexp.MustCompile(`\baccepting\s+children\b`),
	regexp.MustCompile(`\badults\s+entitled\s+to\s+free\s+dental\s+care\b`),
	regexp.MustCompile(`\blimited\s+nhs\s+availability\b`),
	regexp.MustCompile(`\bwaiting\s*list\b`),
}

// Tier 3: explicit acceptance.
var acceptingRes = []*regexp.Regexp{
	regexp.MustCompile(`\baccept(?:ing|s)\s+(?:new\s+)?nhs\s+(?:patients|adults|children)\b`),
	regexp.MustCompile(`\btaking\s+on\s+(?:new\s+)?nhs\b`),
	regexp.MustCompile(`\bnew\s+nhs\s+patients\s+welcome\b`),
	regexp.MustCompile(`\bcurrently\s+taking\s+on\s+nhs\s+patients\b`),
}

var (
	nhsRe          = regexp.MustCompile(`\bnhs\b`)
	notConfirmedRe = regexp.MustCompile(`\bhas\s+not\s+confirmed\b.*\baccept\b.*\bnew\s+nhs\s+patients\b`)
)

// Notes carried on the record for each classification outcome.
const (
	noteNotAccepting = "Not accepting new NHS patients for routine care / specialist by referral only"
	noteLimited      = "Limited NHS availability / children-only / conditional acceptance"
	noteAccepting    = "Accepting new NHS patients"
	noteNotConfirmed = "Has not confirmed if accepting new NHS patients"
	noteUnclear      = "Provides NHS care but availability unclear"
	noteNotStated    = "NHS availability not stated"
)

// Classify maps raw status text to an availability and a human-readable note.
// Evaluation is strictly ordered and short-circuits at the first matching
// tier. Pure and deterministic.
func Classify(text string) (model.Availability, string) {
	t := whitespaceRe.ReplaceAllString(strings.ToLower(text), " ")

	if matchAny(t, notAcceptingRes) {
		return model.AvailabilityNotAccepting, noteNotAccepting
	}
	if matchAny(t, limitedRes) {
		return model.AvailabilityLimited, noteLimited
	}
	if matchAny(t, acceptingRes) {
		return model.AvailabilityAccepting, noteAccepting
	}

	if nhsRe.MatchString(t) {
		if notConfirmedRe.MatchString(t) {
			return model.AvailabilityUnknown, noteNotConfirmed
		}
		return model.AvailabilityUnknown, noteUnclear
	}
	return model.AvailabilityUnknown, noteNotStated
}

func matchAny(t string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}
