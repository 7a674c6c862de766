package cost_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/artpar/costgate/domain/cost"
	"github.com/artpar/costgate/domain/money"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		service string
		amount  money.Amount
		wantErr error
	}{
		{"valid", "u1", "tts", money.MustParse("0.02"), nil},
		{"zero amount ok", "u1", "tts", money.Zero, nil},
		{"negative", "u1", "tts", money.MustParse("-1"), cost.ErrNegativeAmount},
		{"empty service", "u1", "", money.MustParse("0.02"), cost.ErrEmptyService},
		{"empty user", "", "tts", money.MustParse("0.02"), cost.ErrEmptyUserID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cost.Validate(tt.userID, tt.service, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestThresholdError(t *testing.T) {
	te := &cost.ThresholdError{
		Current:   money.MustParse("0.335"),
		Threshold: money.MustParse("0.05"),
	}

	msg := te.Error()
	if msg == "" {
		t.Fatal("empty error message")
	}

	wrapped := fmt.Errorf("synthesize: %w", te)
	got, ok := cost.IsThresholdError(wrapped)
	if !ok {
		t.Fatal("IsThresholdError did not unwrap")
	}
	if got.Current != te.Current || got.Threshold != te.Threshold {
		t.Errorf("unwrapped %+v, want %+v", got, te)
	}

	if _, ok := cost.IsThresholdError(errors.New("other")); ok {
		t.Error("IsThresholdError matched unrelated error")
	}
}

func TestSessionDetail_EntryCount(t *testing.T) {
	d := cost.SessionDetail{Entries: []cost.Entry{{Service: "tts"}, {Service: "llm"}}}
	if d.EntryCount() != 2 {
		t.Errorf("EntryCount = %d, want 2", d.EntryCount())
	}
}
