package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	DoseRecorded = "medicine.dose_recorded"
	DoseDeleted  = "medicine.dose_deleted"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type DoseRecordedEvent struct {
	MedicineID string    `json:"medicine_id"`
	UserID     string    `json:"user_id"`
	HistoryID  string    `json:"history_id"`
	TakenAt    time.Time `json:"taken_at"`
	OnTime     bool      `json:"on_time"`
	NextDoseAt time.Time `json:"next_dose_at"`
}

type DoseDeletedEvent struct {
	MedicineID string `json:"medicine_id"`
	UserID     string `json:"user_id"`
	HistoryID  string `json:"history_id"`
}

type NATSPublisher struct {
	conn *nats.Conn
	log  *slog.Logger
}

func NewNATSPublisher(url string, log *slog.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("lifeplus-api"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats.disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats.reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSPublisher{conn: conn, log: log}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", subject, err)
	}

	n.log.DebugContext(ctx, "event.publish", "subject", subject, "bytes", len(payload))

	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Ping round-trips to the server; used by readiness.
func (n *NATSPublisher) Ping(ctx context.Context) error {
	if !n.conn.IsConnected() {
		return errors.New("nats: not connected")
	}
	return n.conn.FlushWithContext(ctx)
}

func (n *NATSPublisher) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

// NopPublisher drops every event. Used when NATS_URL is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                              { return nil }
