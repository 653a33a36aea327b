package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sglre6355/ferry-watch/internal/domain"
	"github.com/sglre6355/ferry-watch/internal/usecase"
)

const defaultHistoryLimit = 20

// RunStore persists finished runs using GORM. It is write-mostly: nothing reads it back
// to influence a later run.
type RunStore struct {
	db *gorm.DB
}

var _ usecase.RunObserver = (*RunStore)(nil)

// NewRunStore initialises a RunStore backed by db.
func NewRunStore(db *gorm.DB) *RunStore {
	return &RunStore{db: db}
}

// AutoMigrate ensures the runs table exists with the expected schema.
func (s *RunStore) AutoMigrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialised")
	}

	return s.db.WithContext(ctx).AutoMigrate(&runRecord{})
}

// ObserveRun records result.
func (s *RunStore) ObserveRun(ctx context.Context, result domain.RunResult) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("run store not initialised")
	}

	summary := result.Summarise()
	c := result.Criteria
	record := runRecord{
		RunID:               summary.RunID,
		Outcome:             string(summary.Outcome),
		Reason:              summary.Reason,
		ErrorLabel:          summary.ErrorLabel,
		Error:               summary.Error,
		OutboundOrigin:      c.Outbound.Origin,
		OutboundDestination: c.Outbound.Destination,
		OutboundDeparture:   c.Outbound.Departure.UTC(),
		ReturnOrigin:        c.Return.Origin,
		ReturnDestination:   c.Return.Destination,
		ReturnDeparture:     c.Return.Departure.UTC(),
		Adults:              c.Passengers.Adults,
		Children:            c.Passengers.Children,
		Infants:             c.Passengers.Infants,
		Vehicle:             c.Vehicle.Type,
		StartedAt:           summary.StartedAt.UTC(),
		FinishedAt:          summary.FinishedAt.UTC(),
		Notified:            summary.Notified,
		NotifyError:         summary.NotifyError,
		Artifacts:           strings.Join(summary.ArtifactPaths, "\n"),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("record run %s: %w", result.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("run store not initialised")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var records []runRecord
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.RunSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.summary())
	}

	return summaries, nil
}

type runRecord struct {
	ID                  uint      `gorm:"primaryKey"`
	RunID               string    `gorm:"column:run_id;size:64;not null;uniqueIndex:idx_runs_run_id"`
	Outcome             string    `gorm:"column:outcome;size:16;not null"`
	Reason              string    `gorm:"column:reason;type:text"`
	ErrorLabel          string    `gorm:"column:error_label;size:32"`
	Error               string    `gorm:"column:error;type:text"`
	OutboundOrigin      string    `gorm:"column:outbound_origin;size:128;not null"`
	OutboundDestination string    `gorm:"column:outbound_destination;size:128;not null"`
	OutboundDeparture   time.Time `gorm:"column:outbound_departure;not null"`
	ReturnOrigin        string    `gorm:"column:return_origin;size:128;not null"`
	ReturnDestination   string    `gorm:"column:return_destination;size:128;not null"`
	ReturnDeparture     time.Time `gorm:"column:return_departure;not null"`
	Adults              int       `gorm:"column:adults"`
	Children            int       `gorm:"column:children"`
	Infants             int       `gorm:"column:infants"`
	Vehicle             string    `gorm:"column:vehicle;size:64"`
	StartedAt           time.Time `gorm:"column:started_at;not null;index:idx_runs_started_at"`
	FinishedAt          time.Time `gorm:"column:finished_at;not null"`
	Notified            bool      `gorm:"column:notified;not null"`
	NotifyError         string    `gorm:"column:notify_error;type:text"`
	Artifacts           string    `gorm:"column:artifacts;type:text"`
	CreatedAt           time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (runRecord) TableName() string {
	return "runs"
}

func (r runRecord) summary() domain.RunSummary {
	var artifacts []string
	if r.Artifacts != "" {
		artifacts = strings.Split(r.Artifacts, "\n")
	}

	return domain.RunSummary{
		RunID: r.RunID,
		Outbound: domain.Leg{
			Origin:      r.OutboundOrigin,
			Destination: r.OutboundDestination,
			Departure:   r.OutboundDeparture.UTC(),
		},
		Return: domain.Leg{
			Origin:      r.ReturnOrigin,
			Destination: r.ReturnDestination,
			Departure:   r.ReturnDeparture.UTC(),
		},
		Outcome:       domain.Outcome(r.Outcome),
		Reason:        r.Reason,
		ErrorLabel:    r.ErrorLabel,
		Error:         r.Error,
		StartedAt:     r.StartedAt.UTC(),
		FinishedAt:    r.FinishedAt.UTC(),
		Notified:      r.Notified,
		NotifyError:   r.NotifyError,
		ArtifactPaths: artifacts,
	}
}
