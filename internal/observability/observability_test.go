package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/geocoder89/lifeplus/internal/actorctx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/trace"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unique", &pgconn.PgError{Code: "23505"}, "unique_violation"},
		{"fk", &pgconn.PgError{Code: "23503"}, "foreign_key_violation"},
		{"other pg", &pgconn.PgError{Code: "42P01"}, "pg_42P01"},
		{"timeout", errors.New("context deadline exceeded"), "timeout"},
		{"conn", errors.New("connection refused"), "connection"},
		{"unknown", errors.New("boom"), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyDBErr(tc.err); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestObserveDB_CountsErrors(t *testing.T) {
	p := NewProm(prometheus.NewRegistry())

	_ = p.ObserveDB("medicines.get", func() error { return nil })
	_ = p.ObserveDB("medicines.get", func() error { return &pgconn.PgError{Code: "23505"} })

	var m dto.Metric
	if err := p.DbErrorsTotal.WithLabelValues("medicines.get", "unique_violation").Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Fatalf("got %v errors, want 1", got)
	}
}

func TestNilPromIsSafe(t *testing.T) {
	var p *Prom

	called := false
	if err := p.ObserveDB("x", func() error { called = true; return nil }); err != nil || !called {
		t.Fatalf("nil prom must still run fn, called=%v err=%v", called, err)
	}
	p.IncDose("on_time")
	p.IncRecovery("issued")
}

func TestTraceHandler_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("dev", &buf)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	log.InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["trace_id"] != traceID.String() || rec["span_id"] != spanID.String() {
		t.Fatalf("missing trace ids: %v", rec)
	}
}

func TestTraceHandler_AddsActor(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("prod", &buf)

	log.InfoContext(actorctx.WithUserID(context.Background(), "u-42"), "dose")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["actor_id"] != "u-42" {
		t.Fatalf("got actor_id %v, want u-42", rec["actor_id"])
	}
	if _, ok := rec["trace_id"]; ok {
		t.Fatalf("untraced context must not carry trace_id: %v", rec)
	}
}
