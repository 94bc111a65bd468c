package console

import (
	"bufio"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"litterbox-service/internal/logger"
	"litterbox-service/internal/types"
)

// Operator is what the console can ask of the mechanism.
type Operator interface {
	Forward() error
	Reverse() error
	Brake() error
	Coast() error
	SpeedUp() error
	SpeedDown() error
	StartCleaning() error
	StartHoming() error
	StopAction() error
	AbortAutoTest()
	SetCruiseSpeed(duty int)
	Status() types.MotorStatus
}

const prompt = "litterbox> "

const helpText = `Commands:
h		print this help
?		print this help
d		start/stop data output from weight sensor
m		motor control...
c		start cleaning
r		start homing
t		stop motor action
p		print status
+		speed up motor
-		speed down motor
i		get info...
g		get setting...
s		set setting...
q		exit console

`

const motorHelp = `usage: m[?frbc+-] motor control
mf		forward motor
mr		reverse motor
mb		brake motor
mc		coast motor
m+		speedup motor
m-		speeddown motor
`

const infoHelp = `usage: i[?m] print information
im		print memory usage
`

const settingHelp = `usage: g <key> / s <key> <value>
keys: cruise-speed
`

// Console is the single-letter operator shell. One session at a time.
type Console struct {
	op      Operator
	version string
	logger  *logger.Logger

	weightOut atomic.Bool
	mu        sync.Mutex
	out       io.Writer
}

func New(op Operator, version string, l *logger.Logger) *Console {
	return &Console{op: op, version: version, logger: l}
}

// Serve runs one session until the operator quits or rw hits EOF.
func (c *Console) Serve(rw io.ReadWriter) error {
	c.mu.Lock()
	c.out = rw
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.out = nil
		c.mu.Unlock()
	}()

	c.printf("This is litterbox-service commandline interface, version %s.\n\nEnter ? or h for help:\n", c.version)

	scanner := bufio.NewScanner(rw)
	for {
		c.printf("%s", prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if quit := c.Execute(scanner.Text()); quit {
			return nil
		}
	}
}

// Execute runs one command line and reports whether the session should end.
func (c *Console) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	c.logger.Debugf("command %q", line)

	switch line[0] {
	case 'h', '?':
		c.printf("%s", helpText)
	case 'd':
		on := !c.weightOut.Load()
		c.weightOut.Store(on)
		c.printf("weight output %s\n", onOff(on))
	case 'm':
		c.motor(line[1:])
	case 'c':
		c.report(c.op.StartCleaning())
	case 'r':
		c.report(c.op.StartHoming())
	case 't':
		c.report(c.op.StopAction())
	case 'p':
		c.printStatus()
	case '+':
		c.speed(c.op.SpeedUp)
	case '-':
		c.speed(c.op.SpeedDown)
	case 'i':
		c.info(line[1:])
	case 'g':
		c.getSetting(strings.Fields(line[1:]))
	case 's':
		c.setSetting(strings.Fields(line[1:]))
	case 'q':
		return true
	default:
		c.printf("unknown command %q, enter ? for help\n", line)
	}
	return false
}

// Operator drive commands take over from the auto test.
func (c *Console) motor(arg string) {
	var fn func() error
	switch strings.TrimSpace(arg) {
	case "f":
		fn = c.op.Forward
	case "r":
		fn = c.op.Reverse
	case "b":
		fn = c.op.Brake
	case "c":
		fn = c.op.Coast
	case "+":
		c.speed(c.op.SpeedUp)
		return
	case "-":
		c.speed(c.op.SpeedDown)
		return
	default:
		c.printf("%s", motorHelp)
		return
	}
	c.report(fn())
	c.op.AbortAutoTest()
}

func (c *Console) speed(fn func() error) {
	if err := fn(); err != nil {
		c.report(err)
		return
	}
	c.printf("motor speed: %d\n", c.op.Status().Speed)
}

func (c *Console) printStatus() {
	s := c.op.Status()
	c.printf("action: %s\nmotor : %s\nmotor speed: %d\n", s.Action, s.Drive, s.Speed)
	c.printf("output: %d\nauto test: %s\n", s.Output, onOff(s.AutoTest))
}

func (c *Console) info(arg string) {
	switch strings.TrimSpace(arg) {
	case "m":
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		c.printf("heap alloc %d, heap sys %d, goroutines %d\n", ms.HeapAlloc, ms.HeapSys, runtime.NumGoroutine())
	default:
		c.printf("%s", infoHelp)
	}
}

func (c *Console) getSetting(args []string) {
	if len(args) != 1 {
		c.printf("%s", settingHelp)
		return
	}
	switch args[0] {
	case "cruise-speed":
		c.printf("%s = %d\n", args[0], c.op.Status().Speed)
	default:
		c.printf("unknown key %q\n", args[0])
	}
}

func (c *Console) setSetting(args []string) {
	if len(args) != 2 {
		c.printf("%s", settingHelp)
		return
	}
	switch args[0] {
	case "cruise-speed":
		v, err := strconv.Atoi(args[1])
		if err != nil {
			c.printf("invalid value %q: %v\n", args[1], err)
			return
		}
		c.op.SetCruiseSpeed(v)
		c.printf("%s = %d\n", args[0], c.op.Status().Speed)
	default:
		c.printf("unknown key %q\n", args[0])
	}
}

// WriteWeight prints a sample when weight output is switched on.
func (c *Console) WriteWeight(w types.Weight) {
	if !c.weightOut.Load() {
		return
	}
	c.printf("weight: %d (%.1f g)\n", w.Raw, w.Grams)
}

func (c *Console) report(err error) {
	if err != nil {
		c.printf("error: %v\n", err)
	}
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return
	}
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		c.logger.Debugf("console write: %v", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
