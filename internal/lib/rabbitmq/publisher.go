package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Channel: часть amqp.Channel, нужная для публикации.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PublishMessage публикует сообщение в RabbitMQ в формате JSON.
func PublishMessage(ch Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DefaultPublishTimeout используется, если таймаут публикации не задан.
const DefaultPublishTimeout = 2 * time.Second

// Publisher публикует события в один exchange с фиксированным routing key.
// В канал одновременно пишет не больше одной публикации: amqp.Channel не
// безопасен для конкурентного использования.
type Publisher struct {
	sem        chan struct{}
	ch         Channel
	exchange   string
	routingKey string
	timeout    time.Duration
}

// NewPublisher создает Publisher поверх открытого канала.
// Неположительный timeout заменяется на DefaultPublishTimeout.
func NewPublisher(ch Channel, exchange, routingKey string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &Publisher{
		sem:        make(chan struct{}, 1),
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		timeout:    timeout,
	}
}

// Publish отправляет событие и ждёт не дольше таймаута публикации или
// отмены ctx, включая ожидание очереди к каналу. Если брокер не ответил
// вовремя, публикация завершится в фоне, а вызывающий получит ошибку контекста.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	const op = "rabbitmq.Publish"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}

	done := make(chan error, 1)
	go func() {
		defer func() { <-p.sem }()
		done <- PublishMessage(p.ch, p.exchange, p.routingKey, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}
