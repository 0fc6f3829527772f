package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type AMQPConfig struct {
	URL         string
	Exchange    string
	RoutingKey  string
	PublishWait time.Duration
}

// AMQPProvider hands push messages to a notification relay through a topic
// exchange. The connection is opened on first use and reopened after a drop.
type AMQPProvider struct {
	cfg  AMQPConfig
	log  *zap.Logger
	dial func(url string) (*amqp091.Connection, error)

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewAMQP(cfg AMQPConfig, log *zap.Logger) (*AMQPProvider, error) {
	clean, err := sanitizeAMQPURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	cfg.URL = clean
	if cfg.PublishWait <= 0 {
		cfg.PublishWait = 5 * time.Second
	}
	return &AMQPProvider{
		cfg:  cfg,
		log:  log.Named("push.amqp"),
		dial: amqp091.Dial,
	}, nil
}

func (p *AMQPProvider) Send(ctx context.Context, msg Message) error {
	if len(msg.Tokens) == 0 {
		return nil
	}
	body, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.cfg.PublishWait)
	defer cancel()

	err = p.channel.PublishWithContext(pubCtx,
		p.cfg.Exchange,
		p.cfg.RoutingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.resetLocked()
		return fmt.Errorf("publish push message: %w", err)
	}

	p.log.Debug("push.published",
		zap.String("exchange", p.cfg.Exchange),
		zap.String("routing_key", p.cfg.RoutingKey),
		zap.Int("tokens", len(msg.Tokens)),
	)
	return nil
}

func (p *AMQPProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

func (p *AMQPProvider) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.channel != nil && !p.channel.IsClosed() {
		return nil
	}
	p.resetLocked()

	conn, err := p.dial(p.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := channel.ExchangeDeclare(p.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.cfg.Exchange, err)
	}

	p.conn = conn
	p.channel = channel
	p.log.Info("push.connected", zap.String("exchange", p.cfg.Exchange))
	return nil
}

func (p *AMQPProvider) resetLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func encodeMessage(msg Message) ([]byte, error) {
	if msg.Data == nil {
		msg.Data = map[string]string{}
	}
	return json.Marshal(msg)
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if clean == "" {
		return "", errors.New("amqp url is required")
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url scheme must be amqp or amqps")
	}
	return clean, nil
}
