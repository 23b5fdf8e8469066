// Package publish forwards tick records to an MQTT broker.
package publish

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"strings"
	"time"

	"codeberg.org/mutker/plantsim/internal/alert"
	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"codeberg.org/mutker/plantsim/internal/session"
	"codeberg.org/mutker/plantsim/internal/telemetry"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

const contentType = "application/json"

// Config configures the MQTT connection.
type Config struct {
	// Broker is host:port, optionally prefixed with tcp:// or mqtt://.
	Broker      string
	TopicPrefix string
	// ClientID defaults to a random id.
	ClientID  string
	QoS       byte
	KeepAlive time.Duration
}

// Message is the payload published for each tick.
type Message struct {
	SessionID string           `json:"session_id"`
	Page      string           `json:"page"`
	Seq       uint64           `json:"seq"`
	Record    telemetry.Record `json:"record"`
	Alerts    []alert.Alert    `json:"alerts,omitempty"`
}

// Publisher is a session.Sink publishing each tick's record to
// <prefix>/<page>.
type Publisher struct {
	client *paho.Client
	prefix string
	qos    byte
	log    logger.Logger
}

// Dial connects to the broker.
func Dial(ctx context.Context, cfg Config, log logger.Logger) (*Publisher, error) {
	addr, err := brokerAddr(cfg.Broker)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrUnavailable, err)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "plantsim-" + uuid.NewString()
	}

	log = log.With("broker", addr)
	client := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
		OnClientError: func(err error) {
			log.Error().Err(err).Msg("MQTT client error")
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			log.Warn().Uint8("reason_code", d.ReasonCode).Msg("MQTT server disconnected")
		},
	})

	if _, err := client.Connect(ctx, &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  uint16(cfg.KeepAlive / time.Second),
		CleanStart: true,
	}); err != nil {
		conn.Close()
		return nil, errors.New().Wrap(errors.ErrUnavailable, err)
	}

	log.Info().Str("client_id", clientID).Msg("Connected to MQTT broker")

	return &Publisher{
		client: client,
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:    cfg.QoS,
		log:    log,
	}, nil
}

// Topic returns the topic a page's records are published to.
func Topic(prefix, page string) string {
	if prefix == "" {
		return page
	}
	return prefix + "/" + page
}

// Publish sends tick snapshots. Other events are ignored.
func (p *Publisher) Publish(ctx context.Context, snap *session.Snapshot) error {
	if snap.Event != session.EventTick || snap.Record == nil {
		return nil
	}

	payload, err := json.Marshal(Message{
		SessionID: snap.SessionID,
		Page:      snap.Page,
		Seq:       snap.Seq,
		Record:    snap.Record,
		Alerts:    snap.Alerts,
	})
	if err != nil {
		return errors.New().Wrap(errors.ErrPublish, err)
	}

	if _, err := p.client.Publish(ctx, &paho.Publish{
		Topic:   Topic(p.prefix, snap.Page),
		QoS:     p.qos,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: contentType,
		},
	}); err != nil {
		return errors.New().Wrap(errors.ErrPublish, err)
	}

	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	if err := p.client.Disconnect(&paho.Disconnect{ReasonCode: 0}); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

func brokerAddr(broker string) (string, error) {
	if broker == "" {
		return "", errors.New().WithMessage(errors.ErrInvalidConfig, "mqtt broker not set")
	}

	if !strings.Contains(broker, "://") {
		return broker, nil
	}

	u, err := url.Parse(broker)
	if err != nil {
		return "", errors.New().Wrap(errors.ErrInvalidConfig, err)
	}

	switch u.Scheme {
	case "tcp", "mqtt":
	default:
		return "", errors.New().WithMessage(errors.ErrInvalidConfig, "unsupported mqtt scheme: "+u.Scheme)
	}

	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), "1883"), nil
	}
	return u.Host, nil
}
