package telemetry

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"litterbox-service/internal/logger"
	"litterbox-service/internal/types"
)

// Config holds MQTT connection settings.
type Config struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	ClientID   string `yaml:"client_id"`
	Topic      string `yaml:"topic"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// Handlers holds callback functions for MQTT events.
type Handlers struct {
	// OnCommand receives payloads of the form "motor:forward",
	// "action:clean" or "autotest:stop" from the command topic.
	OnCommand func(payload string) error
}

// Client publishes motor and weight telemetry and accepts remote commands.
type Client struct {
	client    paho.Client
	enabled   bool
	prefix    string
	onCommand func(string) error
	logger    *logger.Logger
}

// New creates a new MQTT client. Returns a disabled no-op client if host is empty.
func New(cfg Config, handlers Handlers, l *logger.Logger) (*Client, error) {
	c := &Client{
		prefix:    strings.TrimSuffix(cfg.Topic, "/"),
		onCommand: handlers.OnCommand,
		logger:    l,
	}
	if c.prefix == "" {
		c.prefix = "litterbox"
	}

	if cfg.Host == "" {
		l.Infof("MQTT disabled (no host configured)")
		return c, nil
	}
	c.enabled = true

	var broker string
	var tlsConfig *tls.Config
	if cfg.CACert != "" || cfg.ClientCert != "" {
		if cfg.Port == 0 {
			cfg.Port = 8883
		}
		broker = fmt.Sprintf("ssl://%s:%d", cfg.Host, cfg.Port)
		var err error
		tlsConfig, err = buildTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("build TLS config: %w", err)
		}
	} else {
		if cfg.Port == 0 {
			cfg.Port = 1883
		}
		broker = fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "litterbox-service"
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(c.handleConnectionLost).
		SetOnConnectHandler(c.handleConnect).
		SetDefaultPublishHandler(c.handleMessage).
		SetWill(c.topic("online"), "false", 0, true)
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	c.client = paho.NewClient(opts)

	paho.ERROR = log.New(os.Stdout, "[MQTT ERROR] ", 0)
	paho.CRITICAL = log.New(os.Stdout, "[MQTT CRIT] ", 0)
	paho.WARN = log.New(os.Stdout, "[MQTT WARN] ", 0)

	l.Infof("MQTT broker %s, topic prefix %s", broker, c.prefix)
	return c, nil
}

// SetCommandHandler replaces the command callback. Call before Connect.
func (c *Client) SetCommandHandler(fn func(payload string) error) {
	c.onCommand = fn
}

func buildTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if cfg.CACert != "" {
		caCert, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		caPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = caPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// Connect connects to the MQTT broker. No-op if disabled.
func (c *Client) Connect() error {
	if !c.enabled {
		return nil
	}
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	return nil
}

func (c *Client) Close() {
	if !c.enabled || c.client == nil {
		return
	}
	c.client.Publish(c.topic("online"), 0, true, "false").Wait()
	c.client.Disconnect(250)
}

func (c *Client) IsEnabled() bool {
	return c.enabled
}

func (c *Client) PublishStatus(status types.MotorStatus) error {
	return c.publishJSON(c.topic("status"), true, status)
}

func (c *Client) PublishWeight(w types.Weight) error {
	return c.publishJSON(c.topic("weight"), false, w)
}

func (c *Client) publishJSON(topic string, retained bool, v interface{}) error {
	if !c.enabled {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	c.client.Publish(topic, 0, retained, payload)
	return nil
}

func (c *Client) topic(name string) string {
	return c.prefix + "/" + name
}

func (c *Client) handleConnect(client paho.Client) {
	c.logger.Infof("MQTT connection established")
	client.Publish(c.topic("online"), 0, true, "true")

	// Subscriptions do not survive a reconnect with a clean session
	topic := c.topic("command")
	if token := client.Subscribe(topic, 1, nil); token.Wait() && token.Error() != nil {
		c.logger.Errorf("MQTT subscribe %s: %v", topic, token.Error())
	}
}

func (c *Client) handleConnectionLost(client paho.Client, err error) {
	c.logger.Warnf("MQTT connection lost: %v", err)
}

func (c *Client) handleMessage(client paho.Client, msg paho.Message) {
	c.dispatch(msg.Topic(), msg.Payload())
}

func (c *Client) dispatch(topic string, payload []byte) {
	if topic != c.topic("command") || c.onCommand == nil {
		return
	}
	cmd := strings.TrimSpace(string(payload))
	c.logger.Debugf("MQTT command: %s", cmd)
	if err := c.onCommand(cmd); err != nil {
		c.logger.Warnf("MQTT command %q: %v", cmd, err)
	}
}
