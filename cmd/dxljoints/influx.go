package main

import (
	"log/slog"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"

	"github.com/hipsterbrown/dynamixel-joints/dynamixel"
)

// sampleSink receives each round of position reads.
type sampleSink interface {
	Record(channel string, results dynamixel.ReadResults, at time.Time)
	Close() error
}

// influxSink writes joint positions to InfluxDB without blocking the poll
// loop. Write failures are logged, not returned.
type influxSink struct {
	client   influxdb2.Client
	writeApi api.WriteApi
}

func newInfluxSink(server, token, org, bucket string, logger *slog.Logger) *influxSink {
	client := influxdb2.NewClient(server, token)
	writeApi := client.WriteApi(org, bucket)

	errorsCh := writeApi.Errors()
	go func() {
		for err := range errorsCh {
			logger.Warn("influx write failed", "err", err)
		}
	}()

	return &influxSink{client: client, writeApi: writeApi}
}

func (s *influxSink) Record(channel string, results dynamixel.ReadResults, at time.Time) {
	for _, p := range jointPoints(channel, results, at) {
		s.writeApi.WritePoint(p)
	}
}

func (s *influxSink) Close() error {
	s.writeApi.Flush()
	s.writeApi.Close()
	s.client.Close()
	return nil
}

// jointPoints converts the successful reads of one round into "joint"
// points tagged by channel and actuator ID.
func jointPoints(channel string, results dynamixel.ReadResults, at time.Time) []*write.Point {
	points := make([]*write.Point, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		points = append(points, influxdb2.NewPoint("joint",
			map[string]string{
				"channel": channel,
				"id":      strconv.Itoa(res.ID),
			},
			map[string]interface{}{
				"angle": res.Angle,
				"value": res.Value,
			},
			at,
		))
	}
	return points
}
