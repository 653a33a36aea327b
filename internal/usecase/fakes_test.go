package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

var errInjected = errors.New("injected failure")

// fakePage simulates a booking page: selectors in present exist, everything else does not.
type fakePage struct {
	mu sync.Mutex

	present    map[string]bool
	rejectISO  map[string]bool
	values     map[string]string
	selections map[string]string
	clicks     []string
	html       string
	url        string

	failOn  string
	panicOn string

	closeCalls int
	closeErr   error
}

func newFakePage(html string, selectors ...string) *fakePage {
	p := &fakePage{
		present:    map[string]bool{},
		rejectISO:  map[string]bool{},
		values:     map[string]string{},
		selections: map[string]string{},
		html:       html,
	}
	for _, s := range selectors {
		p.present[s] = true
	}
	return p
}

func (p *fakePage) enter(ctx context.Context, method string) error {
	if p.panicOn == method {
		panic("browser crashed during " + method)
	}
	if p.failOn == method {
		return fmt.Errorf("%s: %w", method, errInjected)
	}
	return ctx.Err()
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Navigate"); err != nil {
		return err
	}
	p.url = url
	return nil
}

func (p *fakePage) WaitVisible(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "WaitVisible"); err != nil {
		return err
	}
	for _, s := range strings.Split(selector, ", ") {
		if p.present[s] {
			return nil
		}
	}
	return fmt.Errorf("waiting for %s: %w", selector, context.DeadlineExceeded)
}

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Count"); err != nil {
		return 0, err
	}
	if p.present[selector] {
		return 1, nil
	}
	return 0, nil
}

func (p *fakePage) SelectOption(ctx context.Context, selector, label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "SelectOption"); err != nil {
		return err
	}
	p.selections[selector] = label
	return nil
}

func (p *fakePage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Fill"); err != nil {
		return err
	}
	if p.rejectISO[selector] && strings.Count(value, "-") == 2 {
		p.values[selector] = ""
		return nil
	}
	p.values[selector] = value
	return nil
}

func (p *fakePage) Value(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Value"); err != nil {
		return "", err
	}
	return p.values[selector], nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Click"); err != nil {
		return err
	}
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *fakePage) Content(ctx context.Context) (PageContent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Content"); err != nil {
		return PageContent{}, err
	}
	return PageContent{HTML: p.html, Text: "page text", URL: p.url, Title: "Booking"}, nil
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(ctx, "Screenshot"); err != nil {
		return nil, err
	}
	return []byte("png"), nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCalls++
	return p.closeErr
}

type fakeBrowser struct {
	pages   []*fakePage
	opened  int
	openErr error
}

func (b *fakeBrowser) Open(ctx context.Context) (BookingPage, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	page := b.pages[b.opened%len(b.pages)]
	b.opened++
	return page, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

type fakeArtifacts struct {
	saved []domain.Diagnostic
	err   error
}

func (a *fakeArtifacts) SaveDiagnostic(_ context.Context, runID string, diag domain.Diagnostic) ([]string, error) {
	a.saved = append(a.saved, diag)
	if a.err != nil {
		return nil, a.err
	}
	return []string{runID + "_screenshot.png", runID + "_page.txt"}, nil
}

type fakeObserver struct {
	results []domain.RunResult
	err     error
}

func (o *fakeObserver) ObserveRun(_ context.Context, result domain.RunResult) error {
	o.results = append(o.results, result)
	return o.err
}

func testLayout() SiteLayout {
	return SiteLayout{
		Operator:   "Test Ferries",
		SearchURL:  "https://ferries.test/search",
		BookingURL: "https://ferries.test/",
		Form: FormLayout{
			Outbound: LegLayout{
				Ready:       []string{"#outbound"},
				JourneyType: []string{"#return-trip"},
				Origin:      []string{"#from"},
				Destination: []string{"#to"},
				Date:        []string{"#date"},
				Submit:      []string{"#search"},
			},
			Return: LegLayout{
				Ready:  []string{"#return"},
				Date:   []string{"#return-date"},
				Submit: []string{"#return-search"},
			},
			Adults:      []string{"#adults"},
			Children:    []string{"#children"},
			Infants:     []string{"#infants"},
			VehicleType: []string{"#vehicle"},
		},
		Results: ResultsLayout{
			Ready:                []string{".results"},
			Containers:           []string{".results"},
			AvailableSelectors:   []string{".fare"},
			AvailableKeywords:    []string{"select fare"},
			UnavailableSelectors: []string{".no-sailings"},
			UnavailableKeywords:  []string{"no sailings available"},
		},
	}
}

// formSelectors is every form selector in testLayout plus the results container.
var formSelectors = []string{
	"#outbound", "#return-trip", "#from", "#to", "#date", "#search",
	"#adults", "#children", "#infants", "#vehicle",
	"#return", "#return-date", "#return-search",
	".results",
}

const (
	availableHTML   = `<html><body><div class="results"><div class="fare">£42.00</div></div></body></html>`
	unavailableHTML = `<html><body><div class="results"><p class="no-sailings">No sailings available</p></div></body></html>`
)

func testCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		Outbound: domain.Leg{
			Origin:      "Troon",
			Destination: "Brodick",
			Departure:   time.Date(2025, time.August, 3, 7, 45, 0, 0, time.UTC),
		},
		Return: domain.Leg{
			Origin:      "Brodick",
			Destination: "Troon",
			Departure:   time.Date(2025, time.August, 5, 15, 30, 0, 0, time.UTC),
		},
		Passengers: domain.Passengers{Adults: 1, Children: 1, Infants: 1},
		Vehicle:    domain.Vehicle{Type: "Car"},
	}
}

var fixedNow = time.Date(2025, time.July, 20, 9, 30, 0, 0, time.UTC)

func testChecker(browser Browser, notifier Notifier, opts ...AvailabilityCheckerOption) *AvailabilityChecker {
	base := []AvailabilityCheckerOption{
		WithCheckerClock(func() time.Time { return fixedNow }),
		WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStepTimeout(time.Second),
		WithResultsTimeout(time.Second),
	}
	return NewAvailabilityChecker(browser, notifier, testLayout(), append(base, opts...)...)
}
