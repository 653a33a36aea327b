package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

const legTimeLayout = "Mon 02 Jan 2006 @ 15:04"

// ComposeMessage renders the plain-text availability alert.
func ComposeMessage(site SiteLayout, criteria domain.SearchCriteria, now time.Time) string {
	operator := site.Operator
	if operator == "" {
		operator = "Ferry"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚢 %s Alert! Your ferry is now available:\n\n", operator)
	fmt.Fprintf(&b, "Outbound: %s on %s\n", criteria.Outbound.Route(), criteria.Outbound.Departure.Format(legTimeLayout))
	fmt.Fprintf(&b, "Return: %s on %s\n", criteria.Return.Route(), criteria.Return.Departure.Format(legTimeLayout))
	fmt.Fprintf(&b, "Travellers: %s\n\n", describeParty(criteria))

	if site.BookingURL != "" {
		fmt.Fprintf(&b, "Book now: %s\n\n", site.BookingURL)
	}

	fmt.Fprintf(&b, "Checked at: %s", now.UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func describeParty(criteria domain.SearchCriteria) string {
	parts := make([]string, 0, 4)
	p := criteria.Passengers
	if p.Adults > 0 {
		parts = append(parts, plural(p.Adults, "adult", "adults"))
	}
	if p.Children > 0 {
		parts = append(parts, plural(p.Children, "child", "children"))
	}
	if p.Infants > 0 {
		parts = append(parts, plural(p.Infants, "infant", "infants"))
	}

	party := strings.Join(parts, ", ")
	if v := criteria.Vehicle.Type; v != "" {
		party += " + " + strings.ToLower(v)
	}
	return party
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
