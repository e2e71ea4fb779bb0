package board

import (
	"errors"
	"testing"
)

func TestValidateSprintTransition(t *testing.T) {
	cases := []struct {
		from, to SprintState
		ok       bool
	}{
		{SprintPlanned, SprintActive, true},
		{SprintActive, SprintClosed, true},
		{SprintClosed, SprintActive, false},
		{SprintPlanned, SprintClosed, false},
		{SprintClosed, SprintDeleted, true},
		{SprintDeleted, SprintPlanned, true},
		{SprintDeleted, SprintActive, false},
		{SprintActive, SprintActive, true},
	}
	for _, tc := range cases {
		err := ValidateSprintTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("%s -> %s: expected invalid transition, got %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateEpicTransition(t *testing.T) {
	cases := []struct {
		from, to EpicStatus
		ok       bool
	}{
		{EpicActive, EpicOnHold, true},
		{EpicOnHold, EpicActive, true},
		{EpicOnHold, EpicDone, true},
		{EpicDone, EpicActive, false},
		{EpicDone, EpicArchived, true},
		{EpicArchived, EpicDeleted, true},
		{EpicDeleted, EpicActive, true},
		{EpicDeleted, EpicArchived, false},
	}
	for _, tc := range cases {
		err := ValidateEpicTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidStateTransition) {
			t.Errorf("%s -> %s: expected invalid transition, got %v", tc.from, tc.to, err)
		}
	}
}

func TestICEScoreRounding(t *testing.T) {
	if got := ICEScore(4, 6, 8); got != 6 {
		t.Fatalf("ICEScore(4,6,8) = %v", got)
	}
	if got := ICEScore(4, 10, 8); got != 7.33 {
		t.Fatalf("ICEScore(4,10,8) = %v", got)
	}
	if got := ICEScore(10, 10, 9); got != 9.67 {
		t.Fatalf("ICEScore(10,10,9) = %v", got)
	}
}
