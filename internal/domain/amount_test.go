package domain

import (
	"encoding/json"
	"testing"
)

func TestAmountAdd(t *testing.T) {
	if got, ok := Amount(2).Add(3); !ok || got != 5 {
		t.Errorf("2+3: expected (5, true), got (%d, %v)", got, ok)
	}

	if got, ok := MaxAmount.Add(0); !ok || got != MaxAmount {
		t.Errorf("max+0: expected (max, true), got (%d, %v)", got, ok)
	}

	// Overflow by one
	if _, ok := MaxAmount.Add(1); ok {
		t.Error("max+1: expected overflow")
	}

	if _, ok := Amount(1).Add(MaxAmount); ok {
		t.Error("1+max: expected overflow")
	}
}

func TestAmountSub(t *testing.T) {
	if got, ok := Amount(5).Sub(3); !ok || got != 2 {
		t.Errorf("5-3: expected (2, true), got (%d, %v)", got, ok)
	}

	if got, ok := Amount(5).Sub(5); !ok || got != 0 {
		t.Errorf("5-5: expected (0, true), got (%d, %v)", got, ok)
	}

	// Underflow by one
	if _, ok := Amount(5).Sub(6); ok {
		t.Error("5-6: expected underflow")
	}

	if _, ok := Amount(0).Sub(1); ok {
		t.Error("0-1: expected underflow")
	}
}

func TestAmountJSONFullRange(t *testing.T) {
	// Values above 2^53 do not survive a float64 round trip, which is
	// why amounts travel as JSON strings.
	data, err := json.Marshal(MaxAmount)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"18446744073709551615"` {
		t.Errorf("unexpected encoding: %s", data)
	}

	var back Amount
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != MaxAmount {
		t.Errorf("round trip lost precision: got %d", back)
	}

	// Numbers are rejected
	if err := json.Unmarshal([]byte(`42`), &back); err == nil {
		t.Error("expected error for JSON number")
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount("18446744073709551616"); err == nil {
		t.Error("expected error for value above uint64 range")
	}
	if _, err := ParseAmount("-1"); err == nil {
		t.Error("expected error for negative value")
	}
	got, err := ParseAmount("0")
	if err != nil || got != 0 {
		t.Errorf("parse 0: expected (0, nil), got (%d, %v)", got, err)
	}
}
