// Package surge derives a surge probability and traffic class from a key's
// recent admission samples.
package surge

import (
	"math"

	"github.com/limitwarden/limitwarden/internal/window"
)

// Class is the traffic regime derived from the surge probability.
type Class int

// Traffic classes, ordered by severity.
const (
	ClassNormal Class = iota
	ClassSurge
	ClassDDoS
)

// Classification boundaries on the surge probability.
const (
	surgeThreshold = 0.30
	ddosThreshold  = 0.70
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case ClassSurge:
		return "surge"
	case ClassDDoS:
		return "ddos"
	default:
		return "normal"
	}
}

// Component weights for the combined probability.
const (
	ratioWeight    = 0.5
	trendWeight    = 0.3
	varianceWeight = 0.2
)

// Prediction is the predictor output for one key.
type Prediction struct {
	Probability float64 // Combined surge probability in [0,1].
	Class       Class   // Classification of Probability.
	Trend       float64 // Raw least-squares slope, requests/sec per sec.
}

// Predictor computes surge predictions from full sample windows.
type Predictor struct {
	capacity int
}

// NewPredictor constructs a Predictor requiring capacity samples before it
// reports a non-zero probability.
func NewPredictor(capacity int) *Predictor {
	if capacity <= 0 {
		capacity = window.DefaultCapacity
	}
	return &Predictor{capacity: capacity}
}

// Predict combines the rate ratio, trend, and variance of the window into a
// probability in [0,1]. With fewer than the full capacity of samples there is
// no prediction: the probability is exactly 0 and the class is Normal.
func (p *Predictor) Predict(samples []window.Sample) Prediction {
	if len(samples) < p.capacity {
		return Prediction{Class: ClassNormal}
	}

	rates := make([]float64, len(samples))
	var sum float64
	for i, s := range samples {
		rates[i] = float64(s.Allowed + s.Blocked)
		sum += rates[i]
	}
	mean := sum / float64(len(rates))
	current := rates[len(rates)-1]
	slope := linearSlope(rates)

	prob := ratioWeight*ratioScore(current, mean) +
		trendWeight*trendScore(slope, mean) +
		varianceWeight*varianceScore(rates, mean)
	prob = clamp01(prob)

	return Prediction{Probability: prob, Class: Classify(prob), Trend: slope}
}

// Classify maps a probability onto a traffic class.
func Classify(prob float64) Class {
	switch {
	case prob >= ddosThreshold:
		return ClassDDoS
	case prob >= surgeThreshold:
		return ClassSurge
	default:
		return ClassNormal
	}
}

// ratioScore scores how far the newest second runs above the windowed mean.
// A current rate at 3x the mean saturates the score.
func ratioScore(current, mean float64) float64 {
	if mean <= 0 {
		if current > 0 {
			return 1
		}
		return 0
	}
	return clamp01((current/mean - 1) / 2)
}

// trendScore scores a positive linear trend, normalized by the mean rate so
// a slope equal to the mean saturates the score. Falling traffic scores 0.
func trendScore(slope, mean float64) float64 {
	if slope <= 0 {
		return 0
	}
	return clamp01(slope / math.Max(mean, 1))
}

// varianceScore is the coefficient of variation capped at 1.
func varianceScore(rates []float64, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	var ss float64
	for _, r := range rates {
		d := r - mean
		ss += d * d
	}
	stddev := math.Sqrt(ss / float64(len(rates)))
	return clamp01(stddev / mean)
}

// linearSlope is the least-squares slope of rates over sample index.
func linearSlope(rates []float64) float64 {
	n := float64(len(rates))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, r := range rates {
		x := float64(i)
		sumX += x
		sumY += r
		sumXY += x * r
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
