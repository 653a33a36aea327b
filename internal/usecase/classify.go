package usecase

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

// Classification is the verdict on a rendered results page.
type Classification struct {
	Outcome domain.Outcome
	Reason  string
}

// Classify inspects results-page HTML. A no-availability indicator wins over fare
// options, and only a fare-option selector match makes a page available, so an
// ambiguous page never triggers an alert.
func Classify(html string, layout ResultsLayout) (Classification, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Classification{Outcome: domain.OutcomeError, Reason: "unparseable results page"},
			fmt.Errorf("parse results page: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	text := normaliseText(doc.Find("body").Text())

	for _, sel := range layout.UnavailableSelectors {
		if n := doc.Find(sel).Length(); n > 0 {
			return Classification{
				Outcome: domain.OutcomeUnavailable,
				Reason:  fmt.Sprintf("found %d no-availability indicator(s) matching %q", n, sel),
			}, nil
		}
	}
	for _, keyword := range layout.UnavailableKeywords {
		if containsKeyword(text, keyword) {
			return Classification{
				Outcome: domain.OutcomeUnavailable,
				Reason:  fmt.Sprintf("page text contains %q", keyword),
			}, nil
		}
	}

	for _, sel := range layout.AvailableSelectors {
		if n := doc.Find(sel).Length(); n > 0 {
			reason := fmt.Sprintf("found %d fare option(s) matching %q", n, sel)
			if keyword := firstKeyword(containerText(doc, layout.Containers), layout.AvailableKeywords); keyword != "" {
				reason += fmt.Sprintf(", results mention %q", keyword)
			}
			return Classification{Outcome: domain.OutcomeAvailable, Reason: reason}, nil
		}
	}

	// Keywords alone never make a page available; they only explain what was seen.
	reason := "neither fare options nor a no-availability indicator found"
	if keyword := firstKeyword(text, layout.AvailableKeywords); keyword != "" {
		reason = fmt.Sprintf("page text mentions %q but no fare option matched", keyword)
	}
	return Classification{Outcome: domain.OutcomeError, Reason: reason}, domain.ErrResultsUnrecognised
}

// containerText is the normalised text of every results container on the page.
func containerText(doc *goquery.Document, containers []string) string {
	if len(containers) == 0 {
		return ""
	}
	return normaliseText(doc.Find(strings.Join(containers, ", ")).Text())
}

func normaliseText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func firstKeyword(text string, keywords []string) string {
	for _, keyword := range keywords {
		if containsKeyword(text, keyword) {
			return keyword
		}
	}
	return ""
}

func containsKeyword(text, keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	return keyword != "" && strings.Contains(text, keyword)
}
