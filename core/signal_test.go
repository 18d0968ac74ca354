package core

import (
	"errors"
	"math"
	"testing"
)

func TestFriisUnitGeometry(t *testing.T) {
	// At d = λ/4π the spreading factor is exactly one.
	got, err := Friis(2, 1, 1, 1, 1/(4*math.Pi))
	if err != nil {
		t.Fatalf("Friis: %v", err)
	}
	if math.Abs(got-2) > 1e-12 {
		t.Fatalf("Friis = %v, want 2", got)
	}
}

func TestFriisInverseSquare(t *testing.T) {
	lambda := Wavelength(2.4e9)
	near, err := Friis(0.1, 2, 3, lambda, 5)
	if err != nil {
		t.Fatalf("Friis near: %v", err)
	}
	far, err := Friis(0.1, 2, 3, lambda, 10)
	if err != nil {
		t.Fatalf("Friis far: %v", err)
	}
	if ratio := near / far; math.Abs(ratio-4) > 1e-9 {
		t.Fatalf("near/far = %v, want 4", ratio)
	}
}

func TestFriisZeroDistance(t *testing.T) {
	if _, err := Friis(1, 1, 1, 0.125, 0); !errors.Is(err, ErrZeroDistance) {
		t.Fatalf("Friis(d=0) error = %v, want ErrZeroDistance", err)
	}
}

func TestWavelengthAndPathLoss(t *testing.T) {
	lambda := Wavelength(2.4e9)
	if math.Abs(lambda-0.124913524) > 1e-9 {
		t.Fatalf("Wavelength(2.4 GHz) = %v", lambda)
	}
	if got := FreeSpacePathLossDB(lambda/(4*math.Pi), 2.4e9); math.Abs(got) > 1e-9 {
		t.Fatalf("FSPL at λ/4π = %v dB, want 0", got)
	}
}

func TestWattsToDBm(t *testing.T) {
	cases := []struct {
		w, want float64
	}{
		{1, 30},
		{0.001, 0},
		{1e-9, -60},
	}
	for _, tc := range cases {
		if got := WattsToDBm(tc.w); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("WattsToDBm(%v) = %v, want %v", tc.w, got, tc.want)
		}
	}
	if got := WattsToDBm(0); !math.IsInf(got, -1) {
		t.Fatalf("WattsToDBm(0) = %v, want -Inf", got)
	}
}

func TestLinkBudgetClampsToOneWavelength(t *testing.T) {
	lb := LinkBudget{TxPowerW: 0.001, TxGain: 1, RxGain: 1, FrequencyHz: 2.4e9}
	atZero, err := lb.ReceivedPowerW(0)
	if err != nil {
		t.Fatalf("ReceivedPowerW(0): %v", err)
	}
	atLambda, err := lb.ReceivedPowerW(lb.Wavelength())
	if err != nil {
		t.Fatalf("ReceivedPowerW(λ): %v", err)
	}
	if atZero != atLambda {
		t.Fatalf("ReceivedPowerW(0) = %v, want clamp to %v", atZero, atLambda)
	}
	atTen, err := lb.ReceivedPowerW(10)
	if err != nil {
		t.Fatalf("ReceivedPowerW(10): %v", err)
	}
	if !(atTen > 0 && atTen < atLambda) {
		t.Fatalf("ReceivedPowerW(10) = %v, want in (0, %v)", atTen, atLambda)
	}
}
