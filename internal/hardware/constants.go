package hardware

import "time"

const (
	Consumer = "litterbox-service"

	DefaultGPIOChip = "gpiochip0"
	PWMSysfsRoot    = "/sys/class/pwm"

	// 20 kHz keeps the DRV8871 out of the audible range
	DefaultPWMPeriod = 50 * time.Microsecond

	DefaultSwitchDebounce = 5 * time.Millisecond

	HX711ReadInterval = 50 * time.Millisecond
	HX711ErrorBackoff = 10 * time.Second
)

// DefaultSwitchLines maps button 0..3 to line offsets. Buttons 0 and 2 are
// the homing limits, 1 and 3 the cleaning limits.
var DefaultSwitchLines = []int{17, 27, 22, 23}

var DefaultHX711Lines = struct {
	Data  int
	Clock int
}{5, 6}
