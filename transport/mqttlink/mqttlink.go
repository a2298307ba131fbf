// Package mqttlink implements transport.NeighborLink over an MQTT broker,
// for neighbors that are separate processes rather than goroutines in the
// same simulation. One topic per directed (from, to) node pair carries
// base64-encoded wire packets, the same encoding scheme the teacher's
// transport/mqtt.Transport uses for MeshCore packets.
package mqttlink

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kabili207/overlay-router/core"
	"github.com/kabili207/overlay-router/core/packet"
	"github.com/kabili207/overlay-router/transport"
)

// DefaultTopicPrefix is the default MQTT topic prefix for overlay packets.
const DefaultTopicPrefix = "overlay"

// Config configures a Link.
type Config struct {
	// Broker is the MQTT broker URL (e.g. "tcp://broker.example.com:1883").
	Broker string
	// Username/Password for MQTT authentication. Leave empty if not required.
	Username, Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "overlay").
	TopicPrefix string
	// Self is this node's id; Peer is the neighbor this link represents.
	// The link publishes on "{prefix}/{self}/{peer}" and subscribes to
	// "{prefix}/{peer}/{self}".
	Self, Peer core.NodeID
	// Logger falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Link implements transport.NeighborLink over MQTT.
type Link struct {
	cfg    Config
	log    *slog.Logger
	client paho.Client

	mu        sync.RWMutex
	connected bool
	inbound   transport.InboundHandler
	state     transport.StateHandler
}

// New creates a Link with the given configuration.
func New(cfg Config) *Link {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{cfg: cfg, log: logger.WithGroup("mqttlink")}
}

func (l *Link) publishTopic() string {
	return fmt.Sprintf("%s/%d/%d", l.cfg.TopicPrefix, l.cfg.Self, l.cfg.Peer)
}

func (l *Link) subscribeTopic() string {
	return fmt.Sprintf("%s/%d/%d", l.cfg.TopicPrefix, l.cfg.Peer, l.cfg.Self)
}

// Start connects to the broker and subscribes to the inbound topic.
func (l *Link) Start(ctx context.Context) error {
	if l.cfg.Broker == "" {
		return errors.New("mqttlink: broker URL is required")
	}

	clientID := l.cfg.ClientID
	if clientID == "" {
		clientID = "overlay-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(l.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetOnConnectHandler(l.onConnected).
		SetConnectionLostHandler(l.onConnectionLost).
		SetReconnectingHandler(l.onReconnecting)

	if l.cfg.Username != "" {
		opts.SetUsername(l.cfg.Username)
	}
	if l.cfg.Password != "" {
		opts.SetPassword(l.cfg.Password)
	}
	if l.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	l.client = paho.NewClient(opts)

	token := l.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("mqttlink: connection timeout")
	}
	return token.Error()
}

// Stop disconnects from the broker.
func (l *Link) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		l.client.Disconnect(1000)
		l.connected = false
	}
	return nil
}

func (l *Link) IsConnected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.connected && l.client != nil && l.client.IsConnected()
}

func (l *Link) SetInboundHandler(fn transport.InboundHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inbound = fn
}

func (l *Link) SetStateHandler(fn transport.StateHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = fn
}

// Send publishes pkt's wire encoding, base64-wrapped, to the outbound topic.
func (l *Link) Send(pkt packet.Packet) error {
	if !l.IsConnected() {
		return errors.New("mqttlink: not connected")
	}
	payload := base64.StdEncoding.EncodeToString(pkt.WriteTo())
	token := l.client.Publish(l.publishTopic(), 0, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("mqttlink: timeout publishing")
	}
	return token.Error()
}

func (l *Link) onConnected(_ paho.Client) {
	l.mu.Lock()
	l.connected = true
	handler := l.state
	l.mu.Unlock()

	l.client.Subscribe(l.subscribeTopic(), 0, l.handleMessage)
	l.log.Info("connected", "broker", l.cfg.Broker, "peer", l.cfg.Peer)
	if handler != nil {
		handler(l, transport.EventConnected)
	}
}

func (l *Link) onConnectionLost(_ paho.Client, err error) {
	l.mu.Lock()
	l.connected = false
	handler := l.state
	l.mu.Unlock()

	l.log.Error("connection lost", "error", err)
	if handler != nil {
		handler(l, transport.EventDisconnected)
	}
}

func (l *Link) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	l.mu.RLock()
	handler := l.state
	l.mu.RUnlock()
	if handler != nil {
		handler(l, transport.EventReconnecting)
	}
}

func (l *Link) handleMessage(_ paho.Client, msg paho.Message) {
	l.mu.RLock()
	handler := l.inbound
	l.mu.RUnlock()
	if handler == nil {
		return
	}

	raw, err := base64.StdEncoding.DecodeString(string(msg.Payload()))
	if err != nil {
		l.log.Debug("failed to decode base64 payload", "error", err)
		return
	}

	var pkt packet.Packet
	if err := pkt.ReadFrom(raw); err != nil {
		l.log.Debug("failed to parse overlay packet", "error", err)
		return
	}
	handler(pkt)
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

var _ transport.NeighborLink = (*Link)(nil)
