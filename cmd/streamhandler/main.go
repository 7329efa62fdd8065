// Command streamhandler is an AWS Lambda subscribed to the DynamoDB stream of
// the measurements table. Measurements written straight into the table get
// their daily rollup refreshed here.
package main

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/aquatracking/aquatracking/internal/app"
	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/service"
)

var pipeline *service.Pipeline

func init() {
	if err := config.Load(); err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}
	app.SetupLogging()
	rt, err := app.Build(context.Background())
	if err != nil {
		panic(fmt.Sprintf("startup failed: %v", err))
	}
	pipeline = rt.Services.Pipeline
}

type dayKey struct {
	homeID string
	start  time.Time
}

// Handler refreshes the rollup of every inserted measurement that did not
// come through the ingestion pipeline. A record that cannot be parsed is
// skipped; a failed refresh fails the batch so the
// stream retries it, which is safe because recompute is idempotent.
func Handler(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if record.EventName != string(events.DynamoDBOperationTypeInsert) {
			continue
		}
		if ingestedByPipeline(record.Change.NewImage) {
			continue
		}
		key, err := parseMeasurement(record.Change.NewImage)
		if err != nil {
			log.Warn().Err(err).Str("event_id", record.EventID).Msg("skipping record")
			continue
		}
		d, err := pipeline.Reprocess(ctx, key.homeID, key.start)
		if err != nil {
			return fmt.Errorf("reprocess %s: %w", key.homeID, err)
		}
		log.Info().Str("home_id", d.HomeID).Str("date", d.Date).Float64("total_liters", d.TotalLiters).Msg("rollup refreshed")
	}
	return nil
}

// ingestedByPipeline reports whether the pipeline stored the measurement and
// already refreshed its rollup.
func ingestedByPipeline(image map[string]events.DynamoDBAttributeValue) bool {
	v, ok := image["ingestedBy"]
	return ok && v.DataType() == events.DataTypeString && v.String() == domain.IngestedByPipeline
}

func parseMeasurement(image map[string]events.DynamoDBAttributeValue) (dayKey, error) {
	var k dayKey
	home, ok := image["homeId"]
	if !ok || home.DataType() != events.DataTypeString || home.String() == "" {
		return k, fmt.Errorf("missing homeId")
	}
	start, ok := image["startTime"]
	if !ok || start.DataType() != events.DataTypeString {
		return k, fmt.Errorf("missing startTime")
	}
	t, err := time.Parse(time.RFC3339Nano, start.String())
	if err != nil {
		return k, fmt.Errorf("startTime: %w", err)
	}
	k.homeID, k.start = home.String(), t
	return k, nil
}

func main() {
	lambda.Start(Handler)
}
