package messaging

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"litterbox-service/internal/logger"
	"litterbox-service/internal/types"

	"github.com/redis/go-redis/v9"
)

// Command lists, LPUSHed by operators and BRPOPed here
const (
	MotorCommandList    = "litterbox:motor"
	ActionCommandList   = "litterbox:action"
	AutoTestCommandList = "litterbox:autotest"
)

// Published hashes and their notification channels
const (
	MotorHash    = "motor"
	WeightHash   = "weight"
	SettingsHash = "settings"
	FaultSet     = "litterbox:fault"
	FaultStream  = "events:faults"
)

type Callbacks struct {
	MotorCallback    func(string) error // "forward", "reverse", "brake", "coast", "speed-up", "speed-down"
	ActionCallback   func(string) error // "home", "clean", "stop"
	AutoTestCallback func(string) error // "start", "stop"
	SettingsCallback func(string) error // setting key that was updated (e.g., "litterbox.cruise-speed")
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(host string, port int, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", host, port),
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetCallbacks replaces the command handlers. Call before StartListening.
func (r *RedisClient) SetCallbacks(callbacks Callbacks) {
	r.callbacks = callbacks
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		r.logger.Infof("Redis connection failed: %v", err)
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")
	return nil
}

// StartListening starts all Redis listeners after system initialization is complete
func (r *RedisClient) StartListening() error {
	r.logger.Infof("Starting Redis listeners")

	pubsub := r.client.Subscribe(r.ctx, SettingsHash)
	r.logger.Infof("Subscribed to Redis channels: %s", SettingsHash)

	r.wg.Add(1)
	go r.redisListener(pubsub)

	r.wg.Add(3)
	go r.listCommandListener(MotorCommandList, r.handleMotorCommand)
	go r.listCommandListener(ActionCommandList, r.handleActionCommand)
	go r.listCommandListener(AutoTestCommandList, r.handleAutoTestCommand)

	return nil
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting %s listener", key)
			return
		default:
			// Use BRPOP with a short timeout to allow periodic context cancellation checks
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if err == context.Canceled {
					r.logger.Infof("Context cancelled, exiting %s listener", key)
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				// Avoid spinning while the server is unreachable
				time.Sleep(time.Second)
				continue
			}

			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command %q: %v", key, value, err)
					if setErr := r.SetLastError(fmt.Sprintf("%s %s: %v", key, value, err)); setErr != nil {
						r.logger.Warnf("Failed to record command error: %v", setErr)
					}
				}
			}
		}
	}
}

func (r *RedisClient) handleMotorCommand(value string) error {
	if r.callbacks.MotorCallback == nil {
		return nil
	}
	switch value {
	case "forward", "reverse", "brake", "coast", "speed-up", "speed-down":
		return r.callbacks.MotorCallback(value)
	default:
		r.logger.Infof("Invalid motor command value: %s", value)
		return fmt.Errorf("invalid motor command: %s", value)
	}
}

func (r *RedisClient) handleActionCommand(value string) error {
	if r.callbacks.ActionCallback == nil {
		return nil
	}
	switch value {
	case "home", "clean", "stop":
		return r.callbacks.ActionCallback(value)
	default:
		r.logger.Infof("Invalid action command value: %s", value)
		return fmt.Errorf("invalid action command: %s", value)
	}
}

func (r *RedisClient) handleAutoTestCommand(value string) error {
	if r.callbacks.AutoTestCallback == nil {
		return nil
	}
	switch value {
	case "start", "stop":
		return r.callbacks.AutoTestCallback(value)
	default:
		r.logger.Infof("Invalid autotest command value: %s", value)
		return fmt.Errorf("invalid autotest command: %s", value)
	}
}

func (r *RedisClient) redisListener(pubsub *redis.PubSub) {
	defer r.wg.Done()
	defer pubsub.Close()

	r.logger.Infof("Starting Redis message listener")
	channel := pubsub.Channel()

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Infof("Context cancelled, exiting listener")
			return
		case msg, ok := <-channel:
			if !ok || msg == nil {
				r.logger.Infof("Redis channel closed unexpectedly")
				r.logger.Fatalf("Redis connection lost, exiting to allow systemd restart")
			}

			r.logger.Debugf("Received Redis message: channel=%s payload=%s", msg.Channel, msg.Payload)

			switch msg.Channel {
			case SettingsHash:
				if r.callbacks.SettingsCallback != nil {
					r.logger.Infof("Processing settings update: %s", msg.Payload)
					if err := r.callbacks.SettingsCallback(msg.Payload); err != nil {
						r.logger.Warnf("Failed to handle settings update: %v", err)
					}
				}
			}
		}
	}
}

func (r *RedisClient) publishHashSet(hash string, values map[string]interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, hash, values)
	pipe.Publish(r.ctx, channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// PublishMotorStatus writes the motor hash and notifies subscribers.
func (r *RedisClient) PublishMotorStatus(status types.MotorStatus) error {
	r.logger.Debugf("Publishing motor status: %+v", status)
	err := r.publishHashSet(MotorHash, map[string]interface{}{
		"drive":     status.Drive,
		"action":    status.Action,
		"busy":      strconv.FormatBool(status.Busy),
		"speed":     status.Speed,
		"output":    status.Output,
		"autotest":  strconv.FormatBool(status.AutoTest),
		"timestamp": time.Now().Format(time.RFC3339),
	}, MotorHash, "status")
	if err != nil {
		r.logger.Warnf("Failed to publish motor status: %v", err)
		return err
	}
	return nil
}

func (r *RedisClient) PublishWeight(w types.Weight) error {
	err := r.publishHashSet(WeightHash, map[string]interface{}{
		"raw":   w.Raw,
		"grams": strconv.FormatFloat(w.Grams, 'f', 1, 64),
	}, WeightHash, "raw")
	if err != nil {
		r.logger.Warnf("Failed to publish weight: %v", err)
		return err
	}
	return nil
}

// SetLastError records the most recent command failure in the motor hash.
func (r *RedisClient) SetLastError(msg string) error {
	return r.publishHashSet(MotorHash, map[string]interface{}{"last-error": msg}, MotorHash, "last-error")
}

// SetSetting stores a value in the settings hash and announces the key.
func (r *RedisClient) SetSetting(key, value string) error {
	return r.publishHashSet(SettingsHash, map[string]interface{}{key: value}, SettingsHash, key)
}

// GetMotorStatus reads back the published motor hash.
func (r *RedisClient) GetMotorStatus() (types.MotorStatus, error) {
	fields, err := r.client.HGetAll(r.ctx, MotorHash).Result()
	if err != nil {
		return types.MotorStatus{}, fmt.Errorf("failed to get %s hash: %w", MotorHash, err)
	}
	speed, _ := strconv.Atoi(fields["speed"])
	output, _ := strconv.Atoi(fields["output"])
	return types.MotorStatus{
		Drive:    fields["drive"],
		Action:   fields["action"],
		Busy:     fields["busy"] == "true",
		Speed:    speed,
		Output:   output,
		AutoTest: fields["autotest"] == "true",
	}, nil
}

func (r *RedisClient) GetWeight() (types.Weight, error) {
	fields, err := r.client.HGetAll(r.ctx, WeightHash).Result()
	if err != nil {
		return types.Weight{}, fmt.Errorf("failed to get %s hash: %w", WeightHash, err)
	}
	raw, _ := strconv.ParseInt(fields["raw"], 10, 64)
	grams, _ := strconv.ParseFloat(fields["grams"], 64)
	return types.Weight{Raw: raw, Grams: grams}, nil
}

// SendCommand sends a command to a Redis list (for communication with other services)
func (r *RedisClient) SendCommand(channel, command string) error {
	err := r.client.LPush(r.ctx, channel, command).Err()
	if err != nil {
		r.logger.Infof("Failed to send command '%s' to channel '%s': %v", command, channel, err)
		return err
	}
	r.logger.Infof("Sent command '%s' to channel '%s'", command, channel)
	return nil
}

// ReportFaultPresent reports a fault as present to Redis
func (r *RedisClient) ReportFaultPresent(code int, description string) error {
	r.logger.Infof("Reporting fault present: code=%d, description=%s", code, description)

	pipe := r.client.Pipeline()
	pipe.SAdd(r.ctx, FaultSet, code)
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: FaultStream,
		MaxLen: 1000,
		Values: map[string]interface{}{
			"group":       "litterbox",
			"code":        code,
			"description": description,
			"ts":          time.Now().UnixMilli(),
		},
	})
	pipe.Publish(r.ctx, MotorHash, "fault")

	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Infof("Failed to report fault present: %v", err)
		return err
	}
	return nil
}

// ReportFaultAbsent reports a fault as absent (cleared) to Redis
func (r *RedisClient) ReportFaultAbsent(code int) error {
	r.logger.Infof("Reporting fault absent: code=%d", code)

	pipe := r.client.Pipeline()
	pipe.SRem(r.ctx, FaultSet, code)
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: FaultStream,
		MaxLen: 1000,
		Values: map[string]interface{}{
			"group": "litterbox",
			"code":  -code, // Negative code indicates fault cleared
		},
	})
	pipe.Publish(r.ctx, MotorHash, "fault")

	if _, err := pipe.Exec(r.ctx); err != nil {
		r.logger.Infof("Failed to report fault absent: %v", err)
		return err
	}
	return nil
}

// GetHashField reads a field from a Redis hash using HGET
func (r *RedisClient) GetHashField(hash, field string) (string, error) {
	value, err := r.client.HGet(r.ctx, hash, field).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get hash field %s from %s: %w", field, hash, err)
	}
	return value, nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	// Wait for all goroutines to finish with a timeout
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Infof("Timeout waiting for Redis goroutines to finish")
	}

	return r.client.Close()
}
