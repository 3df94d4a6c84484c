// Package amqp carries widget refresh hints between the publisher process
// and the widget reader. Hints are advisory: losing one only delays the
// reader until its next scheduled poll.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

// NewClient connects and declares the fanout exchange. queueName may be
// empty for a publish-only client; a consumer passes its own durable queue
// name so hints survive reader restarts.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"fanout",       // type: every reader gets every hint
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if c.queueName == "" {
		return nil
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		"",             // routing key ignored by fanout
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// NotifyRefresh publishes a refresh hint for the user's widget.
// Implements widget.Notifier.
func (c *Client) NotifyRefresh(ctx context.Context, userID string) error {
	msg := NewRefreshHint(userID)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal hint: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		"",             // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish hint: %w", err)
	}

	slog.DebugContext(ctx, "published widget refresh hint",
		"user_id", userID,
		"exchange", c.exchangeName)

	return nil
}

// ConsumeRefresh delivers refresh hints to handler until ctx is done. An
// undecodable hint is dropped, not requeued; a handler error requeues once
// through the broker.
func (c *Client) ConsumeRefresh(ctx context.Context, handler func(context.Context, *RefreshHint) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "consuming widget refresh hints", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			hint, err := RefreshHintFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "undecodable refresh hint", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, hint); err != nil {
				slog.ErrorContext(ctx, "refresh hint handler failed",
					"error", err,
					"user_id", hint.UserID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
