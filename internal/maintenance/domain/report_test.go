package maintenance

import (
	"errors"
	"testing"
)

func TestCanTransition(t *testing.T) {
	path := []State{StateIdle, StateScoringRisk, StateRetrievingEvidence, StateGeneratingPlan, StateDispatching, StateDone}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s", path[i], path[i+1])
		}
	}
	if CanTransition(StateIdle, StateGeneratingPlan) {
		t.Fatal("stages must not be skipped")
	}
	if !CanTransition(StateGeneratingPlan, StateFailed) {
		t.Fatal("expected generating plan to be able to fail")
	}
	if CanTransition(StateDone, StateFailed) || CanTransition(StateFailed, StateIdle) {
		t.Fatal("terminal states must not transition")
	}
}

func TestRunErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	var err error = &RunError{DeviceID: "d", Stage: StateScoringRisk, Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("expected unwrap to cause")
	}
	var runErr *RunError
	if !errors.As(err, &runErr) || runErr.Stage != StateScoringRisk {
		t.Fatalf("unexpected run error %v", err)
	}
}
