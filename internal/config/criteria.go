package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/titanous/json5"

	"github.com/sglre6355/ferry-watch/internal/domain"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// CriteriaFile is the on-disk shape of the search criteria.
type CriteriaFile struct {
	Site       string         `json:"site"`
	Timezone   string         `json:"timezone"`
	Outbound   LegFile        `json:"outbound"`
	Return     LegFile        `json:"return"`
	Passengers PassengersFile `json:"passengers"`
	Vehicle    VehicleFile    `json:"vehicle"`
}

// LegFile is one sailing as written in the criteria file, date and time still as text.
type LegFile struct {
	From string `json:"from"`
	To   string `json:"to"`
	Date string `json:"date"`
	Time string `json:"time"`
}

// PassengersFile holds the passenger counts from the criteria file.
type PassengersFile struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Infants  int `json:"infants"`
}

// VehicleFile names the vehicle; an empty Type means foot passengers only.
type VehicleFile struct {
	Type string `json:"type"`
	Size string `json:"size"`
}

// Criteria is the resolved search plus the site profile it targets.
type Criteria struct {
	Site   string
	Search domain.SearchCriteria
	// Sources lists the files merged to build the criteria, lowest priority first.
	Sources []string
}

// DefaultCriteriaFile returns the built-in watch: a Troon/Brodick return with one adult,
// one child, one infant and a car.
func DefaultCriteriaFile() CriteriaFile {
	return CriteriaFile{
		Site:     "calmac",
		Timezone: "Europe/London",
		Outbound: LegFile{From: "Troon", To: "Brodick", Date: "2025-08-03", Time: "07:45"},
		Return:   LegFile{From: "Brodick", To: "Troon", Date: "2025-08-05", Time: "15:30"},
		Passengers: PassengersFile{
			Adults:   1,
			Children: 1,
			Infants:  1,
		},
		Vehicle: VehicleFile{Type: "Car", Size: "Medium Car"},
	}
}

// LoadCriteria reads name and then its ".local" sibling over the built-in defaults. Missing
// files are not an error. Any other failure is a domain.ConfigurationError.
func LoadCriteria(name string) (Criteria, error) {
	file := DefaultCriteriaFile()

	sources, err := readCriteria(name, &file)
	if err != nil {
		return Criteria{}, domain.ConfigurationError{Field: "CRITERIA_FILE", Err: err}
	}

	search, err := file.Resolve()
	if err != nil {
		return Criteria{}, domain.ConfigurationError{Field: "CRITERIA_FILE", Err: err}
	}

	return Criteria{
		Site:    strings.ToLower(strings.TrimSpace(file.Site)),
		Search:  search,
		Sources: sources,
	}, nil
}

// readCriteria merges <name>.<ext> and then <name>.local.<ext> onto out.
func readCriteria(name string, out *CriteriaFile) ([]string, error) {
	dir := filepath.Dir(name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)
	local := filepath.Join(dir, base+".local"+ext)

	var sources []string
	for _, path := range []string{name, local} {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			continue
		}

		if err := overlayCriteria(data, out); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		sources = append(sources, path)
		if path == local {
			slog.Info("merging criteria with local overrides", slog.String("local", local))
		}
	}

	return sources, nil
}

// overlayCriteria decodes data onto out. Keys present in data replace the current value,
// zero values included; absent keys keep it. A vehicle type change without a size drops
// the previous size, which belonged to the previous vehicle.
func overlayCriteria(data []byte, out *CriteriaFile) error {
	previousType := out.Vehicle.Type
	if err := json5.Unmarshal(data, out); err != nil {
		return err
	}

	var keys struct {
		Vehicle *struct {
			Type *string `json:"type"`
			Size *string `json:"size"`
		} `json:"vehicle"`
	}
	if err := json5.Unmarshal(data, &keys); err != nil {
		return err
	}
	if v := keys.Vehicle; v != nil && v.Type != nil && v.Size == nil &&
		!strings.EqualFold(strings.TrimSpace(*v.Type), strings.TrimSpace(previousType)) {
		out.Vehicle.Size = ""
	}
	return nil
}

// Resolve converts the file form into validated domain criteria.
func (f CriteriaFile) Resolve() (domain.SearchCriteria, error) {
	loc := time.UTC
	if tz := strings.TrimSpace(f.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return domain.SearchCriteria{}, fmt.Errorf("timezone %q: %w", tz, err)
		}
		loc = l
	}

	outbound, err := f.Outbound.resolve("outbound", loc)
	if err != nil {
		return domain.SearchCriteria{}, err
	}
	ret, err := f.Return.resolve("return", loc)
	if err != nil {
		return domain.SearchCriteria{}, err
	}

	criteria := domain.SearchCriteria{
		Outbound: outbound,
		Return:   ret,
		Passengers: domain.Passengers{
			Adults:   f.Passengers.Adults,
			Children: f.Passengers.Children,
			Infants:  f.Passengers.Infants,
		},
		Vehicle: domain.Vehicle{
			Type: strings.TrimSpace(f.Vehicle.Type),
			Size: strings.TrimSpace(f.Vehicle.Size),
		},
	}
	if err := criteria.Validate(); err != nil {
		return domain.SearchCriteria{}, err
	}
	return criteria, nil
}

func (l LegFile) resolve(name string, loc *time.Location) (domain.Leg, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(l.Date), loc)
	if err != nil {
		return domain.Leg{}, fmt.Errorf("%s date %q: want YYYY-MM-DD", name, l.Date)
	}

	departure := day
	if t := strings.TrimSpace(l.Time); t != "" {
		clock, err := time.Parse(timeLayout, t)
		if err != nil {
			return domain.Leg{}, fmt.Errorf("%s time %q: want HH:MM", name, l.Time)
		}
		departure = time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	}

	return domain.Leg{
		Origin:      strings.TrimSpace(l.From),
		Destination: strings.TrimSpace(l.To),
		Departure:   departure,
	}, nil
}
