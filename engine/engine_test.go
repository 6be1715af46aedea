package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type closingEngine struct {
	Funcs
	closed bool
}

func (e *closingEngine) Close() error { e.closed = true; return nil }

func TestFuncs(t *testing.T) {
	e := ComputeFunc(func(_ context.Context, params any, payload []byte) (any, error) {
		return params.(string) + string(payload), nil
	})
	if err := e.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init with nil InitFn: %v", err)
	}
	got, err := e.Compute(context.Background(), "a", []byte("b"))
	if err != nil || got != "ab" {
		t.Fatalf("Compute = (%v, %v); want (ab, nil)", got, err)
	}

	boom := errors.New("boom")
	f := Funcs{InitFn: func(context.Context, any) error { return boom }}
	if err := f.Init(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("Init error = %v; want boom", err)
	}
}

func TestCall(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() (int, error)
		want      int
		wantErr   error
		errSubstr string
	}{
		{name: "success", fn: func() (int, error) { return 3, nil }, want: 3},
		{name: "error passes through", fn: func() (int, error) { return 0, context.Canceled }, wantErr: context.Canceled},
		{
			name:      "panic becomes error",
			fn:        func() (int, error) { panic("kaboom") },
			wantErr:   ErrPanicked,
			errSubstr: "kaboom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Call(tt.fn)
			if tt.wantErr == nil {
				if err != nil || got != tt.want {
					t.Fatalf("Call = (%d, %v); want (%d, nil)", got, err, tt.want)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Call error = %v; want %v", err, tt.wantErr)
			}
			if tt.errSubstr != "" && !strings.Contains(err.Error(), tt.errSubstr) {
				t.Fatalf("error %q does not mention %q", err, tt.errSubstr)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	e := &closingEngine{}
	if err := Discard(e); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if !e.closed {
		t.Fatalf("Discard did not close engine")
	}
	if err := Discard(Funcs{}); err != nil {
		t.Fatalf("Discard of non-closer: %v", err)
	}
}
