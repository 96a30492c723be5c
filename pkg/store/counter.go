package store

// CounterActionType names the actions understood by CounterReducer.
type CounterActionType string

// Counter actions.
const (
	CounterIncrement CounterActionType = "increment"
	CounterDecrement CounterActionType = "decrement"
	CounterIncrease  CounterActionType = "increase"
	CounterToggle    CounterActionType = "toggle"
)

// CounterState is the state of the counter lessons.
type CounterState struct {
	Counter     int  `json:"counter"`
	ShowCounter bool `json:"showCounter"`
}

// CounterAction is dispatched to a counter store. Amount is only read by
// CounterIncrease.
type CounterAction struct {
	Type   CounterActionType `json:"type"`
	Amount int               `json:"amount,omitempty"`
}

// InitialCounterState is the state a fresh counter starts from.
var InitialCounterState = CounterState{Counter: 0, ShowCounter: true}

// CounterReducer reduces counter actions. Unknown actions leave the state
// unchanged.
func CounterReducer(state CounterState, action CounterAction) CounterState {
	switch action.Type {
	case CounterIncrement:
		state.Counter++
	case CounterDecrement:
		state.Counter--
	case CounterIncrease:
		state.Counter += action.Amount
	case CounterToggle:
		state.ShowCounter = !state.ShowCounter
	}

	return state
}

// NewCounter creates a store holding InitialCounterState.
func NewCounter() *Store[CounterState, CounterAction] {
	return New(CounterReducer, InitialCounterState)
}
