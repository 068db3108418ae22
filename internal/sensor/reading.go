package sensor

import "time"

// Reading is the payload published by a pedometer. On the increments topic
// Steps is a delta; on the total topic it is the count since the device's
// local midnight at Timestamp.
type Reading struct {
	SensorID  string    `json:"sensorId"`
	Timestamp time.Time `json:"timestamp"`
	Steps     int       `json:"steps"`
}

// Topics derives the increment and total topics from a base topic.
func Topics(base string) (increments, total string) {
	return base + "/increments", base + "/total"
}
