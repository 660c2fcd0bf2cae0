package imu

// Sample is a single gyroscope + accelerometer reading in the device frame.
type Sample struct {
	Gx float64 `json:"gx"` // angular rate, rad/s unless the tracker is configured for deg/s
	Gy float64 `json:"gy"`
	Gz float64 `json:"gz"`
	Ax float64 `json:"ax"` // specific force, any consistent unit
	Ay float64 `json:"ay"`
	Az float64 `json:"az"`
}

// Reading is one delivery from a sensor source.
type Reading struct {
	Source         string `json:"source"`
	TimestampNanos int64  `json:"timestamp_ns"` // monotonic, only differences matter
	Sample
}

// Source is anything that can deliver IMU readings over time.
type Source interface {
	Next() (Reading, error)
}
