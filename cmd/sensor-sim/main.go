// sensor-sim emulates a field gateway: it posts well-formed sensor
// readings to the ingest endpoint at a fixed interval. In flagged mode one
// metric periodically drifts toward an alerting range so rule firing and
// clearing can be exercised end to end.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// metricProfile drives the generated distribution for one metric
type metricProfile struct {
	metric string
	mean   float64
	stddev float64
	min    float64
	max    float64
	// alertValue is used while the profile is flagged
	alertValue float64
}

var profiles = []metricProfile{
	{metric: "air_temperature", mean: 24.0, stddev: 1.5, min: 18, max: 30, alertValue: 37.5},
	{metric: "air_humidity", mean: 55.0, stddev: 7.0, min: 30, max: 90, alertValue: 96.0},
	{metric: "air_pressure", mean: 1007.5, stddev: 3.5, min: 990, max: 1030, alertValue: 982.0},
	{metric: "water_temperature", mean: 20.0, stddev: 1.2, min: 15, max: 28, alertValue: 29.5},
	{metric: "water_ph", mean: 6.3, stddev: 0.25, min: 4.5, max: 8.5, alertValue: 4.9},
	{metric: "water_conductivity", mean: 1.4, stddev: 0.18, min: 0.5, max: 3.0, alertValue: 2.8},
	{metric: "light_intensity", mean: 500, stddev: 100, min: 50, max: 1500, alertValue: 1650},
}

// normalPackets and alertPackets define the flagged-mode cycle
const (
	normalPackets = 30
	alertPackets  = 10
)

type rawReading struct {
	SensorID  string  `json:"sensor_id"`
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"ts"`
}

func main() {
	target := flag.String("target", "http://localhost:8080/api/v1/ingest", "Ingest endpoint URL")
	device := flag.String("device", "farm-esp32-1", "Sensor device identifier")
	interval := flag.Duration("interval", 2*time.Second, "Delay between transmission rounds")
	flagged := flag.Bool("flagged", false, "Periodically push one metric out of its normal range")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	client := &http.Client{Timeout: 5 * time.Second}

	packet := 0
	flaggedMetric := -1

	for {
		cycle := packet % (normalPackets + alertPackets)
		if *flagged && cycle == normalPackets {
			flaggedMetric = rng.Intn(len(profiles))
			fmt.Printf("flagging %s for %d packets\n", profiles[flaggedMetric].metric, alertPackets)
		}
		if cycle == 0 {
			flaggedMetric = -1
		}

		for i, p := range profiles {
			value := clamp(rng.NormFloat64()*p.stddev+p.mean, p.min, p.max)
			if *flagged && i == flaggedMetric {
				value = p.alertValue
			}

			reading := rawReading{
				SensorID:  *device,
				Metric:    p.metric,
				Value:     round2(value),
				Timestamp: time.Now().Format(time.RFC3339),
			}

			if err := post(client, *target, reading); err != nil {
				fmt.Fprintf(os.Stderr, "post failed: %v\n", err)
			}
		}

		packet++
		time.Sleep(*interval)
	}
}

func post(client *http.Client, target string, reading rawReading) error {
	payload, err := json.Marshal(reading)
	if err != nil {
		return err
	}

	resp, err := client.Post(target, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: unexpected status %s", reading.Metric, resp.Status)
	}
	return nil
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round2(value float64) float64 {
	return float64(int(value*100+0.5)) / 100
}
