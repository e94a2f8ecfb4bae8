package session

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateInit, StateReady, true},
		{StateInit, StateError, true},
		{StateInit, StateBusy, false},
		{StateInit, StateInit, false},
		{StateReady, StateBusy, true},
		{StateReady, StateIdle, true},
		{StateReady, StateReady, false},
		{StateBusy, StateReady, true},
		{StateBusy, StateIdle, false},
		{StateIdle, StateReady, true},
		{StateError, StateInit, true},
		{StateError, StateReady, true},
		{StateError, StateBusy, false},
	}

	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRequiresContainer(t *testing.T) {
	for _, s := range []State{StateReady, StateBusy} {
		if !RequiresContainer(s) {
			t.Errorf("RequiresContainer(%s) = false, want true", s)
		}
	}
	for _, s := range []State{StateInit, StateIdle, StateError} {
		if RequiresContainer(s) {
			t.Errorf("RequiresContainer(%s) = true, want false", s)
		}
	}
}

func TestEffectsFor_ReadyFromInit(t *testing.T) {
	effects := EffectsFor(StateInit, StateReady, false)
	if !containsEffect(effects, EffectEnqueueCreate) {
		t.Errorf("expected create_session effect, got %v", effects)
	}
}

func TestEffectsFor_ReadyFromIdle(t *testing.T) {
	effects := EffectsFor(StateIdle, StateReady, true)
	if !containsEffect(effects, EffectEnqueueReactivate) {
		t.Errorf("expected reactivate_session effect, got %v", effects)
	}
}

func TestEffectsFor_IdleFromReady(t *testing.T) {
	effects := EffectsFor(StateReady, StateIdle, true)
	if !containsEffect(effects, EffectEnqueueStop) {
		t.Errorf("expected stop_session effect, got %v", effects)
	}
}

func TestEffectsFor_Error(t *testing.T) {
	effects := EffectsFor(StateReady, StateError, true)
	if !containsEffect(effects, EffectSetTerminatedAt) {
		t.Errorf("expected terminatedAt effect, got %v", effects)
	}
}

func containsEffect(effects []Effect, want Effect) bool {
	for _, e := range effects {
		if e == want {
			return true
		}
	}
	return false
}
