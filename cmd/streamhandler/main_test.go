package main

import (
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func TestParseMeasurement(t *testing.T) {
	start := time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		image   map[string]events.DynamoDBAttributeValue
		wantErr bool
	}{
		{
			name: "valid",
			image: map[string]events.DynamoDBAttributeValue{
				"id":        events.NewStringAttribute("m1"),
				"homeId":    events.NewStringAttribute("H1"),
				"startTime": events.NewStringAttribute(start.Format(time.RFC3339Nano)),
				"liters":    events.NewNumberAttribute("10"),
			},
		},
		{
			name:    "missing home",
			image:   map[string]events.DynamoDBAttributeValue{"startTime": events.NewStringAttribute(start.Format(time.RFC3339))},
			wantErr: true,
		},
		{
			name: "numeric start",
			image: map[string]events.DynamoDBAttributeValue{
				"homeId":    events.NewStringAttribute("H1"),
				"startTime": events.NewNumberAttribute("1714548600"),
			},
			wantErr: true,
		},
		{
			name: "malformed start",
			image: map[string]events.DynamoDBAttributeValue{
				"homeId":    events.NewStringAttribute("H1"),
				"startTime": events.NewStringAttribute("yesterday"),
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := parseMeasurement(tt.image)
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && (k.homeID != "H1" || !k.start.Equal(start)) {
				t.Errorf("unexpected key %+v", k)
			}
		})
	}
}

func TestIngestedByPipeline(t *testing.T) {
	tests := []struct {
		name  string
		image map[string]events.DynamoDBAttributeValue
		want  bool
	}{
		{"pipeline", map[string]events.DynamoDBAttributeValue{"ingestedBy": events.NewStringAttribute("pipeline")}, true},
		{"bulk import", map[string]events.DynamoDBAttributeValue{"homeId": events.NewStringAttribute("H1")}, false},
		{"other writer", map[string]events.DynamoDBAttributeValue{"ingestedBy": events.NewStringAttribute("backfill")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ingestedByPipeline(tt.image); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
