// Package domain defines the shared data model of the trust economy:
// stakeholder roles, products and their settlement state machine, disputes,
// reputation records, amounts and the categorical error type.
//
// Types in this package carry no locks and perform no I/O. State machines are
// expressed as closed enums with explicit transition tables; components in
// sibling packages must go through Transition helpers rather than assigning
// state fields directly.
package domain
