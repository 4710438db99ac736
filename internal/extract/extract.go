// Package extract turns raw directory page markup into a partial practice
// record plus the raw status-text snippet fed to the classifier.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/miriamhowe1992-eng/smilemap/internal/model"
)

// Extraction is the output of parsing one practice page.
type Extraction struct {
	Record     model.PracticeRecord
	StatusText string
}

// service keyword patterns matched against the lowercased full page text.
var servicePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"invisalign", regexp.MustCompile(`invisalign|clear aligner`)},
	{"implants", regexp.MustCompile(`implant`)},
	{"sedation", regexp.MustCompile(`sedation`)},
	{"emergency", regexp.MustCompile(`emergency|urgent dental`)},
	{"orthodontics", regexp.MustCompile(`orthodontic|braces`)},
	{"cosmetic", regexp.MustCompile(`cosmetic|whitening|veneers`)},
	{"hygiene", regexp.MustCompile(`hygienist|hygiene`)},
}

// availability-relevant patterns used by the fallback candidate scan.
var candidateRes = []*regexp.Regexp{
	regexp.MustCompile(`\bnhs\b`),
	regexp.MustCompile(`\bpatients?\b`),
	regexp.MustCompile(`\baccept(?:i?ng|s)\b`),
	regexp.MustCompile(`\bwaiting\s*list\b`),
	regexp.MustCompile(`\bchildren\s+only\b`),
	regexp.MustCompile(`\bspecialist\b`),
	regexp.MustCompile(`\breferral\b`),
	regexp.MustCompile(`\broutine\s+dental\s+care\b`),
}

var (
	routineRe     = regexp.MustCompile(`\broutine\s+dental\s+care\b`)
	nhsWordRe     = regexp.MustCompile(`\bnhs\b`)
	acceptLangRe  = regexp.MustCompile(`\baccept|\btaking on\b`)
	denyLangRe    = regexp.MustCompile(`\bnot\b|\bno longer\b|\bprivate only\b|\breferral only\b`)
	boilerplateRe = regexp.MustCompile(`find out if this dentist accepts new nhs patients`)
)

// Page parses raw page markup and extracts a partial record. The record's
// availability is left Unknown; classification happens downstream. Missing
// fields are left blank, never errors.
func Page(rawHTML, pageURL string, now time.Time) (*Extraction, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	canonical, err := model.CanonicalURL(pageURL)
	if err != nil {
		return nil, eris.Wrap(err, "extract: canonical url")
	}

	name := clean(textOf(firstElement(doc, atom.H1)))
	if name == "" {
		name = clean(textOf(findByDataTest(doc, "organisation-name")))
	}

	address := clean(textOf(findByDataTest(doc, "address")))
	if address == "" {
		address = clean(textOf(firstElement(doc, atom.Address)))
	}

	phone := clean(textOf(findByDataTest(doc, "telephone")))
	if phone == "" {
		phone = clean(textOf(firstLinkWithPrefix(doc, "tel:")))
	}

	email := ""
	if n := firstLinkWithPrefix(doc, "mailto:"); n != nil {
		email = strings.TrimPrefix(attrVal(n, "href"), "mailto:")
	}

	website := findWebsiteLink(doc)
	accessibility := accessibilityItems(doc)
	pageText := clean(textOf(firstElement(doc, atom.Body)))
	if pageText == "" {
		pageText = clean(textOf(doc))
	}

	rec := model.PracticeRecord{
		SourceKind:     model.SourceDirectory,
		CanonicalURL:   canonical,
		Name:           name,
		AddressText:    address,
		Postcode:       model.NormalizePostcode(address),
		Phone:          phone,
		Website:        website,
		Email:          email,
		PracticeType:   "NHS",
		Availability:   model.AvailabilityUnknown,
		FacilitiesText: facilitiesText(accessibility, pageText),
		LastChecked:    now,
	}

	return &Extraction{
		Record:     rec,
		StatusText: StatusText(doc, pageText),
	}, nil
}

// StatusText pulls the availability snippet from a parsed page, in priority
// order: the "Routine dental care" section, then the best-scoring candidate
// paragraph or list item, then the full page text.
func StatusText(doc *html.Node, pageText string) string {
	if s := routineSection(doc); s != "" {
		return s
	}
	if s := bestCandidate(doc); s != "" {
		return s
	}
	return pageText
}

// routineSection finds a heading matching "routine dental care" and joins the
// text of subsequent block siblings up to, but excluding, the next heading.
func routineSection(doc *html.Node) string {
	var bits []string
	walk(doc, func(n *html.Node) {
		if !isHeading(n) || !routineRe.MatchString(strings.ToLower(clean(textOf(n)))) {
			return
		}
		for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
			if isHeading(sib) {
				break
			}
			if sib.Type == html.ElementNode && isBlockTag(sib.DataAtom) {
				if t := clean(textOf(sib)); t != "" {
					bits = append(bits, t)
				}
			}
		}
	})
	return strings.Join(bits, " ")
}

// bestCandidate collects every paragraph/list item mentioning availability
// language and returns the highest-scoring one. Sorting is stable so equal
// scores keep document order.
func bestCandidate(doc *html.Node) string {
	var candidates []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || (n.DataAtom != atom.P && n.DataAtom != atom.Li) {
			return
		}
		t := clean(textOf(n))
		tl := strings.ToLower(t)
		for _, re := range candidateRes {
			if re.MatchString(tl) {
				candidates = append(candidates, t)
				return
			}
		}
	})
	if len(candidates) == 0 {
		return ""
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return scoreCandidate(candidates[i]) > scoreCandidate(candidates[j])
	})
	return candidates[0]
}

// scoreCandidate ranks a candidate snippet. The generic "find out if this
// dentist accepts" boilerplate is penalized so real statements outrank it.
func scoreCandidate(s string) int {
	tl := strings.ToLower(s)
	score := 0
	if routineRe.MatchString(tl) {
		score += 5
	}
	if nhsWordRe.MatchString(tl) {
		score += 3
	}
	if acceptLangRe.MatchString(tl) {
		score += 2
	}
	if denyLangRe.MatchString(tl) {
		score += 2
	}
	if boilerplateRe.MatchString(tl) {
		score -= 5
	}
	return score
}

// Services reports which service keywords appear in the page text.
func Services(pageText string) []string {
	tl := strings.ToLower(pageText)
	var out []string
	for _, sp := range servicePatterns {
		if sp.re.MatchString(tl) {
			out = append(out, sp.name)
		}
	}
	return out
}

// facilitiesText joins accessibility list items and detected services into
// the free-text facilities field the search filters match against.
func facilitiesText(accessibility []string, pageText string) string {
	parts := append([]string{}, accessibility...)
	parts = append(parts, Services(pageText)...)
	return strings.Join(parts, "; ")
}

// accessibilityItems collects list items under an accessibility container.
func accessibilityItems(doc *html.Node) []string {
	var items []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if attrVal(n, "data-test") != "accessibility" && !strings.Contains(attrVal(n, "class"), "accessibility") {
			return
		}
		walk(n, func(li *html.Node) {
			if li.Type == html.ElementNode && li.DataAtom == atom.Li {
				if t := clean(textOf(li)); t != "" {
					items = append(items, t)
				}
			}
		})
	})
	return items
}

// findWebsiteLink returns the href of the first external link whose visible
// text mentions "website".
func findWebsiteLink(doc *html.Node) string {
	var found string
	walk(doc, func(n *html.Node) {
		if found != "" || n.Type != html.ElementNode || n.DataAtom != atom.A {
			return
		}
		href := attrVal(n, "href")
		if !strings.HasPrefix(href, "http") {
			return
		}
		if strings.Contains(strings.ToLower(textOf(n)), "website") {
			found = href
		}
	})
	return found
}

// DOM helpers

var whitespaceRe = regexp.MustCompile(`\s+`)

func clean(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
	})
	return b.String()
}

func firstElement(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.DataAtom == a {
			found = c
		}
	})
	return found
}

func findByDataTest(n *html.Node, val string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && attrVal(c, "data-test") == val {
			found = c
		}
	})
	return found
}

func firstLinkWithPrefix(n *html.Node, prefix string) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.DataAtom == atom.A &&
			strings.HasPrefix(attrVal(c, "href"), prefix) {
			found = c
		}
	})
	return found
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isHeading(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4:
		return true
	}
	return false
}

func isBlockTag(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Li, atom.Ul, atom.Ol, atom.Div, atom.Section:
		return true
	}
	return false
}
