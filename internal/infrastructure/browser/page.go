package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/sglre6355/ferry-watch/internal/usecase"
)

type chromePage struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

var _ usecase.BookingPage = (*chromePage)(nil)

// run executes actions on the tab, bounded by the caller's ctx as well as the tab's
// own lifetime.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.tabCtx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		return err
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *chromePage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	if err := p.run(ctx, chromedp.Evaluate(countScript(selector), &n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (p *chromePage) SelectOption(ctx context.Context, selector, label string) error {
	var problem string
	if err := p.run(ctx, chromedp.Evaluate(selectOptionScript(selector, label), &problem)); err != nil {
		return err
	}
	if problem != "" {
		return fmt.Errorf("select %q: %s", label, problem)
	}
	return nil
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	return p.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (p *chromePage) Value(ctx context.Context, selector string) (string, error) {
	var v string
	if err := p.run(ctx, chromedp.Value(selector, &v, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return v, nil
}

func (p *chromePage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *chromePage) Content(ctx context.Context) (usecase.PageContent, error) {
	var content usecase.PageContent
	err := p.run(ctx,
		chromedp.Location(&content.URL),
		chromedp.Title(&content.Title),
		chromedp.OuterHTML("html", &content.HTML, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &content.Text),
	)
	if err != nil {
		return usecase.PageContent{}, err
	}
	return content, nil
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (p *chromePage) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = chromedp.Cancel(p.tabCtx)
		p.cancelTab()
		p.cancelAlloc()
	})
	return p.closeErr
}

func countScript(selector string) string {
	return fmt.Sprintf(`document.querySelectorAll(%q).length`, selector)
}

// selectOptionScript picks the option whose text or value matches label, ignoring case,
// and fires the events front-end frameworks listen for. It evaluates to "" on success.
func selectOptionScript(selector, label string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%q);
  if (!el) return "element not found";
  if (!el.options) return "element is not a select";
  const want = %q;
  for (const o of el.options) {
    if (o.text.trim().toLowerCase() === want || o.value.trim().toLowerCase() === want) {
      el.value = o.value;
      el.dispatchEvent(new Event("input", { bubbles: true }));
      el.dispatchEvent(new Event("change", { bubbles: true }));
      return "";
    }
  }
  return "no matching option";
})()`, selector, strings.ToLower(strings.TrimSpace(label)))
}
