// Package ledger records medicine doses. Each medicine carries a dose cursor
// (its last taken time) that only moves forward, and every accepted dose
// appends one immutable history entry.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/lifeplus/internal/domain/medicine"
	"github.com/geocoder89/lifeplus/internal/events"
	"github.com/geocoder89/lifeplus/internal/observability"
	"github.com/geocoder89/lifeplus/internal/ownership"
)

// Store must run RecordDose atomically per medicine: decide sees the
// current row and its result is written, with the cursor advanced, before
// any other RecordDose on that medicine loads it.
type Store interface {
	GetByID(ctx context.Context, id string) (medicine.Medicine, error)
	RecordDose(ctx context.Context, medicineID string, decide func(m medicine.Medicine) (medicine.HistoryEntry, error)) (medicine.HistoryEntry, error)
	ListHistory(ctx context.Context, medicineID string) ([]medicine.HistoryEntry, error)
	GetHistory(ctx context.Context, id string) (medicine.HistoryEntry, error)
	DeleteHistory(ctx context.Context, id string) error
}

type Ledger struct {
	store  Store
	events events.Publisher
	prom   *observability.Prom
	log    *slog.Logger
	now    func() time.Time
}

func New(store Store, pub events.Publisher, prom *observability.Prom, log *slog.Logger) *Ledger {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{store: store, events: pub, prom: prom, log: log, now: time.Now}
}

// EffectiveTime resolves when a dose counts as taken. An on-time dose lands
// exactly one interval after the cursor and ignores takenAt.
func EffectiveTime(m medicine.Medicine, takenAt *time.Time, onTime bool) (time.Time, error) {
	var effective time.Time

	if onTime {
		next := m.NextDose()
		if next == nil {
			return time.Time{}, medicine.ErrNoPriorDose
		}
		effective = *next
	} else {
		if takenAt == nil {
			return time.Time{}, medicine.ErrMissingTimestamp
		}
		effective = takenAt.UTC()
	}

	if m.LastTakenAt != nil && !effective.After(*m.LastTakenAt) {
		return time.Time{}, medicine.ErrNonMonotonicDose
	}
	return effective, nil
}

func (l *Ledger) RecordDose(ctx context.Context, medicineID, callerID string, takenAt *time.Time, onTime bool) (medicine.HistoryEntry, error) {
	var interval time.Duration

	entry, err := l.store.RecordDose(ctx, medicineID, func(m medicine.Medicine) (medicine.HistoryEntry, error) {
		if !ownership.Owns(m.UserID, callerID) {
			return medicine.HistoryEntry{}, medicine.ErrNotFound
		}

		effective, err := EffectiveTime(m, takenAt, onTime)
		if err != nil {
			return medicine.HistoryEntry{}, err
		}

		interval = m.Interval()
		e := medicine.NewHistoryEntry(m.ID, effective, onTime)
		e.CreatedAt = l.now().UTC()
		return e, nil
	})
	if err != nil {
		if !errors.Is(err, medicine.ErrNotFound) {
			l.prom.IncDose("rejected")
		}
		return medicine.HistoryEntry{}, err
	}

	if onTime {
		l.prom.IncDose("on_time")
	} else {
		l.prom.IncDose("manual")
	}

	l.log.InfoContext(ctx, "ledger.dose_recorded",
		"medicine_id", medicineID,
		"history_id", entry.ID,
		"on_time", onTime,
	)

	l.publish(ctx, events.DoseRecorded, events.DoseRecordedEvent{
		MedicineID: medicineID,
		UserID:     callerID,
		HistoryID:  entry.ID,
		TakenAt:    entry.TakenAt,
		OnTime:     entry.OnTime,
		NextDoseAt: entry.TakenAt.Add(interval),
	})

	return entry, nil
}

func (l *Ledger) ListHistory(ctx context.Context, medicineID, callerID string) ([]medicine.HistoryEntry, error) {
	if _, err := l.ownedMedicine(ctx, medicineID, callerID); err != nil {
		return nil, err
	}
	return l.store.ListHistory(ctx, medicineID)
}

func (l *Ledger) GetHistoryEntry(ctx context.Context, historyID, callerID string) (medicine.HistoryEntry, error) {
	h, err := l.store.GetHistory(ctx, historyID)
	if err != nil {
		return medicine.HistoryEntry{}, err
	}

	if _, err := l.ownedMedicine(ctx, h.MedicineID, callerID); err != nil {
		if errors.Is(err, medicine.ErrNotFound) {
			return medicine.HistoryEntry{}, medicine.ErrHistoryNotFound
		}
		return medicine.HistoryEntry{}, err
	}
	return h, nil
}

// DeleteHistoryEntry removes one entry. The cursor stays where it is, so
// later doses are still checked against the furthest dose ever recorded.
func (l *Ledger) DeleteHistoryEntry(ctx context.Context, historyID, callerID string) error {
	h, err := l.GetHistoryEntry(ctx, historyID, callerID)
	if err != nil {
		return err
	}

	if err := l.store.DeleteHistory(ctx, h.ID); err != nil {
		return err
	}

	l.publish(ctx, events.DoseDeleted, events.DoseDeletedEvent{
		MedicineID: h.MedicineID,
		UserID:     callerID,
		HistoryID:  h.ID,
	})
	return nil
}

func (l *Ledger) ownedMedicine(ctx context.Context, medicineID, callerID string) (medicine.Medicine, error) {
	return ownership.Load(ctx, l.store.GetByID, func(m medicine.Medicine) string { return m.UserID },
		medicineID, callerID, medicine.ErrNotFound)
}

// publish is best effort; the dose is already committed.
func (l *Ledger) publish(ctx context.Context, subject string, v any) {
	if err := l.events.Publish(ctx, subject, v); err != nil {
		l.log.WarnContext(ctx, "ledger.publish_failed", "subject", subject, "err", err)
	}
}
