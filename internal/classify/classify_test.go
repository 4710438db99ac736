package classify

import (
	"testing"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

func TestClassify_NotAccepting(t *testing.T) {
	cases := []string{
		"This dentist does not currently accept new NHS patients for routine dental care",
		"We are not accepting new NHS patients at this time",
		"The practice is no longer accepting patients under the NHS",
		"Currently closed to NHS registrations",
		"Private only practice",
		"This practice is only taking new NHS patients for specialist dental care and requires a referral",
	}
	for _, text := range cases {
		status, note := Classify(text)
		if status != model.AvailabilityNotAccepting {
			t.Errorf("Classify(%q) = %q, want not_accepting", text, status)
		}
		if note == "" {
			t.Errorf("Classify(%q) returned empty note", text)
		}
	}
}

func TestClassify_Limited(t *testing.T) {
	cases := []string{
		"When availability allows, this practice accepts new NHS patients",
		"Children only at present",
		"Currently accepting children for NHS dental care",
		"Accepting adults entitled to free dental care",
		"Limited NHS availability",
		"New patients join a waiting list",
	}
	for _, text := range cases {
		status, _ := Classify(text)
		if status != model.AvailabilityLimited {
			t.Errorf("Classify(%q) = %q, want limited", text, status)
		}
	}
}

func TestClassify_Accepting(t *testing.T) {
	cases := []string{
		"This dentist is accepting new NHS patients",
		"We are taking on new NHS patients",
		"New NHS patients welcome",
		"Currently taking on NHS patients of all ages",
		"Accepting NHS adults and children",
	}
	for _, text := range cases {
		status, _ := Classify(text)
		if status != model.AvailabilityAccepting {
			t.Errorf("Classify(%q) = %q, want accepting", text, status)
		}
	}
}

// Tier 1 wins when denial and acceptance phrases both appear.
func TestClassify_DenialBeatsAcceptance(t *testing.T) {
	text := "We were accepting new NHS patients, but the practice is now closed to NHS and private only. New NHS patients welcome on our private plan."
	status, _ := Classify(text)
	if status != model.AvailabilityNotAccepting {
		t.Errorf("expected not_accepting, got %q", status)
	}
}

// Tier 2 wins over tier 3.
func TestClassify_LimitedBeatsAcceptance(t *testing.T) {
	text := "Accepting new NHS patients via our waiting list"
	status, _ := Classify(text)
	if status != model.AvailabilityLimited {
		t.Errorf("expected limited, got %q", status)
	}
}

func TestClassify_UnknownNotes(t *testing.T) {
	cases := []struct {
		text string
		note string
	}{
		{"This dentist has not confirmed that they accept new NHS patients", noteNotConfirmed},
		{"This practice provides NHS dental services", noteUnclear},
		{"A friendly dental practice in Ipswich", noteNotStated},
		{"", noteNotStated},
	}
	for _, c := range cases {
		status, note := Classify(c.text)
		if status != model.AvailabilityUnknown {
			t.Errorf("Classify(%q) = %q, want unknown", c.text, status)
		}
		if note != c.note {
			t.Errorf("Classify(%q) note = %q, want %q", c.text, note, c.note)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	text := "When availability allows, this practice accepts new NHS patients"
	s1, n1 := Classify(text)
	s2, n2 := Classify(text)
	if s1 != s2 || n1 != n2 {
		t.Error("classification not deterministic for identical input")
	}
}

func TestClassify_CollapsesWhitespace(t *testing.T) {
	status, _ := Classify("not   accepting\n\tnew  NHS   patients")
	if status != model.AvailabilityNotAccepting {
		t.Errorf("expected not_accepting across irregular whitespace, got %q", status)
	}
}
