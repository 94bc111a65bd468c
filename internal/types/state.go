package types

// MotorStatus is the published view of the motor, as written to the
// Redis "motor" hash and the MQTT status topic.
type MotorStatus struct {
	Drive    string `json:"drive"`
	Action   string `json:"action"`
	Busy     bool   `json:"busy"`
	Speed    int    `json:"speed"`
	Output   int    `json:"output"`
	AutoTest bool   `json:"autotest"`
}

// Weight is one load cell sample.
type Weight struct {
	Raw   int64   `json:"raw"`
	Grams float64 `json:"grams"`
}
