// Package session holds the session finite-state machine: states, the
// allowed-transition table, and the side effects a transition enqueues.
package session

// State is one of the five session lifecycle states.
type State string

const (
	StateInit  State = "INIT"
	StateReady State = "READY"
	StateBusy  State = "BUSY"
	StateIdle  State = "IDLE"
	StateError State = "ERROR"
)

// TaskType names the kind of work enqueued for the lifecycle worker.
type TaskType string

const (
	TaskCreateSession     TaskType = "create_session"
	TaskStopSession       TaskType = "stop_session"
	TaskReactivateSession TaskType = "reactivate_session"
	TaskDestroySession    TaskType = "destroy_session"
	TaskExecuteCommand    TaskType = "execute_command"
)

// allowedTransitions is the graph from spec §4.1. Self-transitions are
// deliberately absent everywhere — see the Open Question decision in
// DESIGN.md: a same-state request is always rejected, never a silent no-op.
var allowedTransitions = map[State]map[State]bool{
	StateInit:  {StateReady: true, StateError: true},
	StateReady: {StateBusy: true, StateIdle: true, StateError: true},
	StateBusy:  {StateReady: true, StateError: true},
	StateIdle:  {StateReady: true, StateError: true},
	StateError: {StateInit: true, StateReady: true},
}

// CanTransition reports whether from->to is an allowed edge in the graph.
func CanTransition(from, to State) bool {
	edges, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// RequiresContainer reports whether a session in this state must have a
// running container.
func RequiresContainer(s State) bool {
	return s == StateReady || s == StateBusy
}

// Effect is one action a transition causes, applied by the caller: field
// effects go into the same conditional state write, and enqueue effects are
// separate inserts made after that write succeeds (not in one transaction).
type Effect int

const (
	// EffectSetStartedAt sets startedAt to now, the first time only.
	EffectSetStartedAt Effect = iota
	// EffectTouchActivity sets lastActivityAt to now.
	EffectTouchActivity
	// EffectEnqueueCreate enqueues create_session.
	EffectEnqueueCreate
	// EffectEnqueueReactivate enqueues reactivate_session.
	EffectEnqueueReactivate
	// EffectEnqueueStop enqueues stop_session.
	EffectEnqueueStop
	// EffectEnqueueDestroy enqueues destroy_session.
	EffectEnqueueDestroy
	// EffectSetTerminatedAt sets terminatedAt and records terminationReason.
	EffectSetTerminatedAt
)

// EffectsFor returns the side effects a transition causes, per the table in
// spec §4.1. hasContainerID and from disambiguate the "any -> Ready"
// row, which enqueues create_session when the session has never had a
// container and reactivate_session when it is waking from Idle.
func EffectsFor(from, to State, hasContainerID bool) []Effect {
	switch {
	case to == StateReady:
		effects := []Effect{EffectSetStartedAt, EffectTouchActivity}
		if !hasContainerID {
			effects = append(effects, EffectEnqueueCreate)
		} else if from == StateIdle {
			effects = append(effects, EffectEnqueueReactivate)
		}
		return effects
	case to == StateIdle && (from == StateReady || from == StateBusy):
		return []Effect{EffectEnqueueStop}
	case to == StateError:
		return []Effect{EffectSetTerminatedAt}
	}
	return nil
}

// TaskForDestroy is the task type enqueued by a soft-delete, which is not a
// state-machine transition but a parallel operation on any non-deleted state.
const TaskForDestroy = TaskDestroySession
