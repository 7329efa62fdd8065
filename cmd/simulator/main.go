package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/aquatracking/aquatracking/internal/config"
	"github.com/aquatracking/aquatracking/internal/service"
)

func main() {
	homeID := flag.String("home", "home-001", "home id to report for")
	sensors := flag.Int("sensors", 2, "number of simulated flow sensors")
	count := flag.Int("count", 100, "measurements to publish")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between measurements")
	flag.Parse()
	if *sensors < 1 {
		*sensors = 1
	}

	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	opts := mqtt.NewClientOptions().AddBroker(config.MQTTBroker()).SetClientID("aquatracking-simulator")
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatal().Err(token.Error()).Msg("mqtt connect")
	}
	defer client.Disconnect(250)

	topic := config.MQTTTopic()
	for i := 0; i < *count; i++ {
		duration := time.Duration(10+rand.Intn(290)) * time.Second
		end := time.Now()
		m := service.MeasurementMessage{
			SensorID:    fmt.Sprintf("sensor-%02d", i%*sensors+1),
			HomeID:      *homeID,
			StartTime:   end.Add(-duration),
			EndTime:     end,
			Liters:      duration.Seconds() * (0.05 + rand.Float64()*0.15), // 3 to 12 L/min
			DurationSec: duration.Seconds(),
			Unit:        "L",
		}
		payload, _ := json.Marshal(m)
		token := client.Publish(topic, 1, false, payload)
		if token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Msg("publish failed")
		}
		time.Sleep(*interval)
	}
	log.Info().Int("count", *count).Str("home_id", *homeID).Msg("simulation done")
}
