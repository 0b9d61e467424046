package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPress(t *testing.T) {
	errCovered := errors.New("element covered")
	blocked := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	tests := []struct {
		name          string
		mouse         func(context.Context) error
		syntheticErr  error
		wantSynthetic bool
		wantErr       bool
	}{
		{name: "mouse ok", mouse: func(context.Context) error { return nil }},
		{name: "mouse fails", mouse: func(context.Context) error { return errCovered }, wantSynthetic: true},
		{name: "mouse blocks", mouse: blocked, wantSynthetic: true},
		{name: "both fail", mouse: blocked, syntheticErr: errCovered, wantSynthetic: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			synthetic := false
			start := time.Now()
			err := press(ctx, "button.submit", 20*time.Millisecond, tt.mouse, func(ctx context.Context) error {
				synthetic = true
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return tt.syntheticErr
			})

			if (err != nil) != tt.wantErr {
				t.Fatalf("press err = %v, wantErr %v", err, tt.wantErr)
			}
			if synthetic != tt.wantSynthetic {
				t.Errorf("synthetic called = %v, want %v", synthetic, tt.wantSynthetic)
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Errorf("press took %v, mouse budget not applied", elapsed)
			}
		})
	}
}
