package surge

import (
	"testing"

	"github.com/limitwarden/limitwarden/internal/window"
)

func constantWindow(n int, rate int64) []window.Sample {
	samples := make([]window.Sample, n)
	for i := range samples {
		samples[i] = window.Sample{Second: int64(i), Allowed: rate}
	}
	return samples
}

func TestPredict_PartialWindowHasNoPrediction(t *testing.T) {
	predictor := NewPredictor(30)

	pred := predictor.Predict(constantWindow(29, 5))
	if pred.Probability != 0 {
		t.Fatalf("expected probability 0 with a partial window, got %.4f", pred.Probability)
	}
	if pred.Class != ClassNormal {
		t.Fatalf("expected normal class, got %s", pred.Class)
	}
}

func TestPredict_ConstantTrafficIsNormal(t *testing.T) {
	predictor := NewPredictor(30)

	pred := predictor.Predict(constantWindow(30, 5))
	if pred.Probability != 0 {
		t.Fatalf("expected probability 0 for constant traffic, got %.4f", pred.Probability)
	}
	if pred.Class != ClassNormal {
		t.Fatalf("expected normal class, got %s", pred.Class)
	}
}

func TestPredict_SpikeRaisesProbability(t *testing.T) {
	predictor := NewPredictor(30)

	samples := constantWindow(30, 5)
	samples[len(samples)-1].Allowed = 50

	pred := predictor.Predict(samples)
	if pred.Probability < 0.5 {
		t.Fatalf("expected spike probability >= 0.5, got %.4f", pred.Probability)
	}
	if pred.Probability > 1 {
		t.Fatalf("probability out of range: %.4f", pred.Probability)
	}
	if pred.Class == ClassNormal {
		t.Fatalf("expected elevated class for spike, got %s", pred.Class)
	}
	if pred.Trend <= 0 {
		t.Fatalf("expected positive trend for spike, got %.4f", pred.Trend)
	}
}

func TestClassify_Boundaries(t *testing.T) {
	cases := []struct {
		prob float64
		want Class
	}{
		{0.0, ClassNormal},
		{0.29, ClassNormal},
		{0.30, ClassSurge},
		{0.69, ClassSurge},
		{0.70, ClassDDoS},
		{1.0, ClassDDoS},
	}
	for _, tc := range cases {
		if got := Classify(tc.prob); got != tc.want {
			t.Fatalf("Classify(%.2f) = %s, want %s", tc.prob, got, tc.want)
		}
	}
}
