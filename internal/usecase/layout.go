package usecase

// LegLayout lists candidate CSS selectors for one leg of the search form. Candidates are
// tried in order and the first one present on the page is used.
type LegLayout struct {
	Ready       []string
	JourneyType []string
	Origin      []string
	Destination []string
	Date        []string
	Submit      []string
}

// FormLayout describes the booking search form.
type FormLayout struct {
	Outbound LegLayout
	Return   LegLayout

	Adults   []string
	Children []string
	Infants  []string

	AddVehicle  []string
	VehicleType []string
	VehicleSize []string
}

// ResultsLayout describes how to recognise the rendered results page.
type ResultsLayout struct {
	Ready []string
	// Containers hold the list of sailings once the search has run.
	Containers []string
	// AvailableSelectors match a bookable fare or sailing. A match is required for
	// the page to count as available.
	AvailableSelectors []string
	// AvailableKeywords are supporting evidence only, looked for inside Containers.
	AvailableKeywords    []string
	UnavailableSelectors []string
	UnavailableKeywords  []string
}

// SiteLayout is everything operator-specific the checker needs.
type SiteLayout struct {
	Operator   string
	SearchURL  string
	BookingURL string
	Form       FormLayout
	Results    ResultsLayout
}

// SelectorGroup is a named set of candidate selectors.
type SelectorGroup struct {
	Name      string
	Selectors []string
}

// Groups flattens the layout into named selector groups, in form order.
func (l SiteLayout) Groups() []SelectorGroup {
	f := l.Form
	groups := []SelectorGroup{
		{Name: "outbound form", Selectors: f.Outbound.Ready},
		{Name: "journey type", Selectors: f.Outbound.JourneyType},
		{Name: "outbound origin", Selectors: f.Outbound.Origin},
		{Name: "outbound destination", Selectors: f.Outbound.Destination},
		{Name: "outbound date", Selectors: f.Outbound.Date},
		{Name: "outbound submit", Selectors: f.Outbound.Submit},
		{Name: "adults", Selectors: f.Adults},
		{Name: "children", Selectors: f.Children},
		{Name: "infants", Selectors: f.Infants},
		{Name: "add vehicle", Selectors: f.AddVehicle},
		{Name: "vehicle type", Selectors: f.VehicleType},
		{Name: "vehicle size", Selectors: f.VehicleSize},
		{Name: "return form", Selectors: f.Return.Ready},
		{Name: "return origin", Selectors: f.Return.Origin},
		{Name: "return destination", Selectors: f.Return.Destination},
		{Name: "return date", Selectors: f.Return.Date},
		{Name: "return submit", Selectors: f.Return.Submit},
		{Name: "results ready", Selectors: l.Results.Ready},
		{Name: "results container", Selectors: l.Results.Containers},
		{Name: "fare options", Selectors: l.Results.AvailableSelectors},
		{Name: "no availability", Selectors: l.Results.UnavailableSelectors},
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Selectors) > 0 {
			out = append(out, g)
		}
	}
	return out
}
