package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/metrics"
	"github.com/aquatracking/aquatracking/internal/repository"
)

// Pipeline turns a raw measurement into an updated rollup and its alerts:
// store the measurement, recompute the home-local day, evaluate thresholds.
type Pipeline struct {
	repos        *repository.Repos
	measurements *MeasurementService
	daily        *DailyService
	policy       config.Settings
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

type IngestResult struct {
	Measurement *domain.Measurement      `json:"measurement"`
	Rollup      *domain.DailyConsumption `json:"rollup"`
	Alerts      []domain.Alert           `json:"alerts"`
}

// MeasurementMessage is the MQTT payload published by sensors.
type MeasurementMessage struct {
	SensorID    string    `json:"sensor_id"`
	HomeID      string    `json:"home_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Liters      float64   `json:"liters"`
	DurationSec float64   `json:"duration_sec"`
	Unit        string    `json:"unit,omitempty"`
}

// Ingest validates and stores m, then refreshes the rollup of the day m
// starts in. The home must exist. The stored measurement is marked as
// ingested so the stream handler does not refresh the same day again.
func (p *Pipeline) Ingest(ctx context.Context, m *domain.Measurement) (*IngestResult, error) {
	if err := checkMeasurement(m); err != nil {
		return nil, err
	}
	home, err := p.repos.Homes.Get(ctx, m.HomeID)
	if err != nil {
		return nil, err
	}
	m.IngestedBy = domain.IngestedByPipeline
	stored, err := p.measurements.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	p.metrics.MeasurementIngested()

	date := stored.StartTime.In(home.Location(p.policy.DefaultLocation)).Format(domain.DateLayout)
	rollup, alerts, err := p.daily.Refresh(ctx, stored.HomeID, date)
	if err != nil {
		return nil, fmt.Errorf("refresh rollup %s/%s: %w", stored.HomeID, date, err)
	}
	p.log.Debug().
		Str("measurement_id", stored.ID).
		Str("home_id", stored.HomeID).
		Str("date", date).
		Float64("total_liters", rollup.TotalLiters).
		Int("alerts", len(alerts)).
		Msg("measurement ingested")
	return &IngestResult{Measurement: stored, Rollup: rollup, Alerts: alerts}, nil
}

// FromMQTT decodes a sensor message and ingests it.
func (p *Pipeline) FromMQTT(ctx context.Context, topic string, payload []byte) error {
	var msg MeasurementMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decode %s payload: %w", topic, err)
	}
	_, err := p.Ingest(ctx, &domain.Measurement{
		SensorID:    msg.SensorID,
		HomeID:      msg.HomeID,
		StartTime:   msg.StartTime,
		EndTime:     msg.EndTime,
		Liters:      msg.Liters,
		DurationSec: msg.DurationSec,
		Unit:        msg.Unit,
	})
	return err
}

// Reprocess refreshes the rollup a stored measurement belongs to. It is used
// for measurements written to the store without going through Ingest;
// recompute is idempotent, so processing one twice is harmless.
func (p *Pipeline) Reprocess(ctx context.Context, homeID string, start time.Time) (*domain.DailyConsumption, error) {
	home, err := p.daily.lookupHome(ctx, homeID)
	if err != nil {
		return nil, err
	}
	date := start.In(home.Location(p.policy.DefaultLocation)).Format(domain.DateLayout)
	rollup, _, err := p.daily.Refresh(ctx, homeID, date)
	return rollup, err
}

func checkMeasurement(m *domain.Measurement) error {
	switch {
	case m.SensorID == "":
		return fmt.Errorf("sensorId is required: %w", domain.ErrValidation)
	case m.HomeID == "":
		return fmt.Errorf("homeId is required: %w", domain.ErrValidation)
	case m.StartTime.IsZero():
		return fmt.Errorf("startTime is required: %w", domain.ErrValidation)
	case m.EndTime.Before(m.StartTime):
		return fmt.Errorf("endTime before startTime: %w", domain.ErrValidation)
	case m.Liters < 0:
		return fmt.Errorf("liters must be >= 0: %w", domain.ErrValidation)
	case m.DurationSec < 0:
		return fmt.Errorf("durationSec must be >= 0: %w", domain.ErrValidation)
	}
	return nil
}
