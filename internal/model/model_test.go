package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrAlreadyExercised, "precondition"},
		{fmt.Errorf("book: %w", ErrNotLong), "authorization"},
		{ErrInsufficientAllowance, "custody"},
		{fmt.Errorf("%w: x", ErrArithmetic), "arithmetic"},
		{fmt.Errorf("%w: x", ErrOracle), "oracle"},
		{errors.New("disk on fire"), "internal"},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestEnumsRoundTripAsText(t *testing.T) {
	type wire struct {
		Side   Side       `json:"side"`
		Family Family     `json:"family"`
		Curve  CurveKind  `json:"curve"`
		Option OptionType `json:"option"`
	}
	in := wire{SideShort, FamilyGenie, CurveSinusoidal, OptionPut}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"side":"short","family":"genie","curve":"sinusoidal","option":"put"}`
	if string(b) != want {
		t.Errorf("json = %s, want %s", b, want)
	}
	var out wire
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestSideOpposite(t *testing.T) {
	if SideLong.Opposite() != SideShort || SideShort.Opposite() != SideLong || SideNone.Opposite() != SideNone {
		t.Error("Opposite is not an involution on long/short")
	}
}

func TestParseTieBreak(t *testing.T) {
	if tb, err := ParseTieBreak("short"); err != nil || tb != TieShort {
		t.Errorf("short: %v %v", tb, err)
	}
	if tb, err := ParseTieBreak(""); err != nil || tb != TieLong {
		t.Errorf("default: %v %v", tb, err)
	}
	if _, err := ParseTieBreak("coin-flip"); err == nil {
		t.Error("expected error")
	}
}
