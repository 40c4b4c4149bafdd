package cadence

import "math"

// Hold classification bounds, in milliseconds
const (
	StaccatoBelowMS = 80.0
	LegatoFromMS    = 150.0
)

// HoldStateFor classifies a mean hold duration
func HoldStateFor(meanMS float64) HoldState {
	switch {
	case meanMS < StaccatoBelowMS:
		return Staccato
	case meanMS < LegatoFromMS:
		return Tenuto
	default:
		return Legato
	}
}

// TrackHold adds a press duration to the stream's moving average and
// reclassifies its articulation. Invalid durations are ignored.
func TrackHold(s *StreamState, durationMS float64, onUpdate func(s *StreamState)) {
	if durationMS <= 0 || math.IsNaN(durationMS) || math.IsInf(durationMS, 0) {
		return
	}
	s.holds = append(s.holds, durationMS)
	if len(s.holds) > MaxHoldSamples {
		s.holds = s.holds[len(s.holds)-MaxHoldSamples:]
	}
	if len(s.holds) == 0 {
		return
	}

	sum := 0.0
	for _, h := range s.holds {
		sum += h
	}
	s.MeanHoldMS = sum / float64(len(s.holds))
	s.Hold = HoldStateFor(s.MeanHoldMS)
	if onUpdate != nil {
		onUpdate(s)
	}
}
