package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

var errNoCandidates = errors.New("layout defines no selectors")

// bookingFlow fills and submits the search form one leg at a time.
type bookingFlow struct {
	page        BookingPage
	form        FormLayout
	stepTimeout time.Duration
	settle      time.Duration
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
}

func (f *bookingFlow) fillOutbound(ctx context.Context, criteria domain.SearchCriteria) error {
	leg := f.form.Outbound

	if len(leg.Ready) > 0 {
		if _, err := f.locate(ctx, "outbound form", leg.Ready); err != nil {
			return err
		}
	}

	if sel := f.present(ctx, leg.JourneyType); sel != "" {
		if err := f.click(ctx, "journey type", sel); err != nil {
			f.logger.Warn("could not select return journey", slog.String("selector", sel), slog.Any("error", err))
		} else {
			f.logger.Info("selected return journey", slog.String("selector", sel))
		}
	}

	if err := f.selectPort(ctx, "outbound origin", leg.Origin, criteria.Outbound.Origin, true); err != nil {
		return err
	}
	if err := f.selectPort(ctx, "outbound destination", leg.Destination, criteria.Outbound.Destination, true); err != nil {
		return err
	}
	if err := f.fillDate(ctx, "outbound date", leg.Date, criteria.Outbound.Departure); err != nil {
		return err
	}

	f.fillPassengers(ctx, criteria.Passengers)
	f.addVehicle(ctx, criteria.Vehicle)

	return f.submit(ctx, "outbound submit", leg.Submit)
}

func (f *bookingFlow) fillReturn(ctx context.Context, criteria domain.SearchCriteria) error {
	leg := f.form.Return

	if len(leg.Ready) > 0 {
		if _, err := f.locate(ctx, "return form", leg.Ready); err != nil {
			return err
		}
	}

	// Operators usually infer the return ports from the outbound leg.
	if err := f.selectPort(ctx, "return origin", leg.Origin, criteria.Return.Origin, false); err != nil {
		return err
	}
	if err := f.selectPort(ctx, "return destination", leg.Destination, criteria.Return.Destination, false); err != nil {
		return err
	}
	if err := f.fillDate(ctx, "return date", leg.Date, criteria.Return.Departure); err != nil {
		return err
	}

	return f.submit(ctx, "return submit", leg.Submit)
}

// locate waits until one of the candidates is visible and returns the first that matches.
func (f *bookingFlow) locate(ctx context.Context, step string, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", domain.NavigationError{Step: step, Err: errNoCandidates}
	}

	stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	defer cancel()

	if err := f.page.WaitVisible(stepCtx, strings.Join(candidates, ", ")); err != nil {
		return "", domain.NavigationError{
			Step: step,
			Err:  fmt.Errorf("no element matching %q within %s: %w", candidates, f.stepTimeout, err),
		}
	}

	for _, sel := range candidates {
		n, err := f.page.Count(stepCtx, sel)
		if err != nil {
			f.logger.Debug("selector count failed", slog.String("step", step), slog.String("selector", sel), slog.Any("error", err))
			continue
		}
		if n > 0 {
			return sel, nil
		}
	}

	return "", domain.NavigationError{Step: step, Err: fmt.Errorf("no element matching %q", candidates)}
}

// present returns the first candidate currently on the page without waiting, or "".
func (f *bookingFlow) present(ctx context.Context, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	defer cancel()

	for _, sel := range candidates {
		n, err := f.page.Count(stepCtx, sel)
		if err == nil && n > 0 {
			return sel
		}
	}
	return ""
}

func (f *bookingFlow) selectPort(ctx context.Context, step string, candidates []string, port string, required bool) error {
	var sel string
	if required {
		found, err := f.locate(ctx, step, candidates)
		if err != nil {
			return err
		}
		sel = found
	} else if sel = f.present(ctx, candidates); sel == "" {
		f.logger.Debug("optional field not present", slog.String("step", step))
		return nil
	}

	stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	defer cancel()

	if err := f.page.SelectOption(stepCtx, sel, port); err != nil {
		return domain.NavigationError{Step: step, Err: fmt.Errorf("select %q in %s: %w", port, sel, err)}
	}
	f.logger.Info("selected port", slog.String("step", step), slog.String("port", port), slog.String("selector", sel))

	return f.pause(ctx)
}

// fillDate enters the date in ISO form first and falls back to DD/MM/YYYY when the
// field rejects it.
func (f *bookingFlow) fillDate(ctx context.Context, step string, candidates []string, day time.Time) error {
	sel, err := f.locate(ctx, step, candidates)
	if err != nil {
		return err
	}

	stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	defer cancel()

	iso := day.Format("2006-01-02")
	if err := f.page.Fill(stepCtx, sel, iso); err != nil {
		return domain.NavigationError{Step: step, Err: fmt.Errorf("fill %s: %w", sel, err)}
	}

	value, err := f.page.Value(stepCtx, sel)
	if err != nil || strings.TrimSpace(value) == "" {
		uk := day.Format("02/01/2006")
		if err := f.page.Fill(stepCtx, sel, uk); err != nil {
			return domain.NavigationError{Step: step, Err: fmt.Errorf("fill %s: %w", sel, err)}
		}
		f.logger.Info("set date", slog.String("step", step), slog.String("value", uk), slog.String("selector", sel))
	} else {
		f.logger.Info("set date", slog.String("step", step), slog.String("value", iso), slog.String("selector", sel))
	}

	return f.pause(ctx)
}

func (f *bookingFlow) fillPassengers(ctx context.Context, passengers domain.Passengers) {
	counts := []struct {
		step       string
		candidates []string
		value      int
	}{
		{step: "adults", candidates: f.form.Adults, value: passengers.Adults},
		{step: "children", candidates: f.form.Children, value: passengers.Children},
		{step: "infants", candidates: f.form.Infants, value: passengers.Infants},
	}

	for _, c := range counts {
		sel := f.present(ctx, c.candidates)
		if sel == "" {
			if c.value > 0 {
				f.logger.Warn("passenger field not found", slog.String("step", c.step))
			}
			continue
		}

		stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
		err := f.page.Fill(stepCtx, sel, strconv.Itoa(c.value))
		cancel()
		if err != nil {
			f.logger.Warn("could not set passenger count", slog.String("step", c.step), slog.Any("error", err))
			continue
		}
		f.logger.Info("set passengers", slog.String("step", c.step), slog.Int("count", c.value))
	}
}

func (f *bookingFlow) addVehicle(ctx context.Context, vehicle domain.Vehicle) {
	if vehicle.Type == "" {
		return
	}

	if sel := f.present(ctx, f.form.AddVehicle); sel != "" {
		if err := f.click(ctx, "add vehicle", sel); err != nil {
			f.logger.Warn("could not open vehicle section", slog.Any("error", err))
		}
	}

	sel := f.present(ctx, f.form.VehicleType)
	if sel == "" {
		f.logger.Warn("vehicle type field not found", slog.String("vehicle", vehicle.Type))
		return
	}

	stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	defer cancel()

	if err := f.page.SelectOption(stepCtx, sel, vehicle.Type); err != nil {
		f.logger.Warn("could not select vehicle type", slog.String("vehicle", vehicle.Type), slog.Any("error", err))
		return
	}
	f.logger.Info("selected vehicle", slog.String("vehicle", vehicle.Type))

	if vehicle.Size == "" {
		return
	}
	if sizeSel := f.present(ctx, f.form.VehicleSize); sizeSel != "" {
		if err := f.page.SelectOption(stepCtx, sizeSel, vehicle.Size); err != nil {
			f.logger.Warn("could not select vehicle size, using default", slog.String("size", vehicle.Size), slog.Any("error", err))
		}
	}
}

func (f *bookingFlow) submit(ctx context.Context, step string, candidates []string) error {
	sel, err := f.locate(ctx, step, candidates)
	if err != nil {
		return err
	}
	if err := f.click(ctx, step, sel); err != nil {
		return err
	}
	f.logger.Info("submitted search", slog.String("step", step), slog.String("selector", sel))

	return f.pause(ctx)
}

func (f *bookingFlow) click(ctx context.Context, step, sel string) error {
	stepCtx, cancel := context.WithTimeout(ctx, f.stepTimeout)
	defer cancel()

	if err := f.page.Click(stepCtx, sel); err != nil {
		return domain.NavigationError{Step: step, Err: fmt.Errorf("click %s: %w", sel, err)}
	}
	return nil
}

func (f *bookingFlow) pause(ctx context.Context) error {
	if err := f.sleep(ctx, f.settle); err != nil {
		return domain.NavigationError{Step: "settle", Err: err}
	}
	return nil
}
