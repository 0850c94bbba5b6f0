package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"go.uber.org/zap"
)

const (
	qos = byte(1)

	defaultKeepAlive      = uint16(60)
	defaultConnectTimeout = 5 * time.Second
)

// Config describes the broker connection.
type Config struct {
	ServerURL string
	ClientID  string
	// ThingsBoard devices authenticate with username = access token and an empty password.
	Username  string
	Password  string
	KeepAlive uint16
}

// Client is a thin publish-only wrapper over an autopaho connection manager.
type Client struct {
	cm     *autopaho.ConnectionManager
	logger *zap.Logger
}

// Connect starts the connection manager and waits a bounded time for the first connection.
// The manager keeps reconnecting in the background until ctx is cancelled, so a broker that
// is down at start-up only produces a warning.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, errors.New("mqtt: server url is empty")
	}
	parsedURL, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt: parse server url: %w", err)
	}

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}

	cliCfg := autopaho.ClientConfig{
		BrokerUrls:                    []*url.URL{parsedURL},
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: true,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			logger.Info("mqtt connection up", zap.String("server", parsedURL.Host))
		},
		OnConnectError: func(err error) {
			logger.Warn("mqtt connection attempt failed", zap.Error(err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnClientError: func(err error) {
				logger.Error("mqtt client error", zap.Error(err))
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					logger.Warn("mqtt server requested disconnect", zap.String("reason", d.Properties.ReasonString))
				} else {
					logger.Warn("mqtt server requested disconnect", zap.Uint8("reason_code", d.ReasonCode))
				}
			},
		},
	}

	if cfg.Username != "" {
		cliCfg.ConnectUsername = cfg.Username
		cliCfg.ConnectPassword = []byte(cfg.Password)
	}

	cm, err := autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt: connect: %w", err)
	}

	awaitCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()
	if err := cm.AwaitConnection(awaitCtx); err != nil {
		logger.Warn("mqtt broker not reachable yet, continuing in background", zap.Error(err))
	}

	return &Client{cm: cm, logger: logger}, nil
}

// Publish sends payload to topic with QoS 1.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	_, err := c.cm.Publish(ctx, &paho.Publish{
		QoS:     qos,
		Topic:   topic,
		Payload: payload,
	})
	return err
}

// Disconnect closes the connection gracefully.
func (c *Client) Disconnect(ctx context.Context) error {
	if c == nil || c.cm == nil {
		return nil
	}
	return c.cm.Disconnect(ctx)
}
