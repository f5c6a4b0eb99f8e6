package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"

	"github.com/segmentio/kafka-go"
)

// Handler reacts to an event published by another terminal of the store.
type Handler func(ctx context.Context, event Event) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer follows the store's event topic. Every terminal reads with its own
// group so each one sees all events, and events it published itself are
// skipped.
type Consumer struct {
	reader   messageReader
	terminal string
	handlers map[string]Handler
}

func NewConsumer(topic, terminal string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "pos-terminal-" + terminal,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(reader, terminal)
}

func newConsumer(reader messageReader, terminal string) *Consumer {
	return &Consumer{reader: reader, terminal: terminal, handlers: make(map[string]Handler)}
}

// Handle registers h for events of the given type. It must be called before Run.
func (c *Consumer) Handle(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// Run reads until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); err != nil {
			return
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		log.Printf("failed to close kafka reader: %v", err)
		return err
	}
	return nil
}

// processMessage returns an error only when the reader can no longer be used.
func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
			return err
		}
		log.Printf("error reading event: %v", err)
		return nil
	}

	var event Event
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Printf("error parsing event at offset %d: %v", m.Offset, err)
		return nil
	}
	if event.Terminal == c.terminal {
		return nil
	}

	h, ok := c.handlers[event.Type]
	if !ok {
		return nil
	}
	if err := h(ctx, event); err != nil {
		log.Printf("failed to handle %s from %s: %v", event.Type, event.Terminal, err)
	}
	return nil
}
