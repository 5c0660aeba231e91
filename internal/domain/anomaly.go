package domain

import "time"

// AnomalyDirection indicates on which side of the rolling median an anomalous
// sample fell.
type AnomalyDirection string

const (
	AnomalyAbove AnomalyDirection = "above"
	AnomalyBelow AnomalyDirection = "below"
)

// AnomalyRecord describes one statistically anomalous net-volume sample.
// DetectedAt is wall-clock detection time (drives retention); SourceTick is
// the timestamp of the IndicatorRecord whose sample triggered the detection.
type AnomalyRecord struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	DetectedAt time.Time        `json:"detectedAt"`
	SourceTick time.Time        `json:"sourceTick"`
	Value      float64          `json:"value"`
	ZScore     float64          `json:"zScore"`
	Direction  AnomalyDirection `json:"direction"`
}
