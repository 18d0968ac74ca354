package logging

import (
	"context"
	"errors"
	"testing"
)

func TestEnsureRunIDIsStable(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRunID returned empty id")
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id {
		t.Fatalf("second EnsureRunID = %q, want %q", id2, id)
	}
	if got := RunIDFromContext(ctx2); got != id {
		t.Fatalf("RunIDFromContext = %q, want %q", got, id)
	}
}

func TestRunIDFromNilContext(t *testing.T) {
	if got := RunIDFromContext(nil); got != "" {
		t.Fatalf("RunIDFromContext(nil) = %q, want empty", got)
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	l := Noop()
	ctx := ContextWithLogger(context.Background(), l)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("LoggerFromContext returned nil")
	}
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on bare context")
	}
}

func TestBackendsAcceptFields(t *testing.T) {
	for _, backend := range []string{"slog", "zap"} {
		l := New(Config{Level: "error", Backend: backend})
		ctx, rl := WithRunLogger(context.Background(), l)
		rl.Debug(ctx, "dropped", Int("n", 1), Float64("f", 0.5))
		rl.With(Err(errors.New("boom"))).Info(ctx, "dropped too")
	}
}

func TestErrField(t *testing.T) {
	if f := Err(nil); f.Value != "" {
		t.Fatalf("Err(nil).Value = %v, want empty", f.Value)
	}
	if f := Err(errors.New("x")); f.Key != "error" || f.Value != "x" {
		t.Fatalf("Err = %+v", f)
	}
}
