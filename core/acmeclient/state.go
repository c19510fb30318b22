package acmeclient

import (
	"fmt"

	"golang.org/x/crypto/acme"
)

// State identifies where an issuance attempt stands. Transitions are driven
// exclusively by Client.advance; anything else mutating an attempt is a bug.
type State string

const (
	StateNoAccount    State = "no_account"
	StateRegistered   State = "registered"
	StateOrderCreated State = "order_created"
	StateAuthorizing  State = "authorizing"
	StateOrderReady   State = "order_ready"
	StateFinalizing   State = "finalizing"
	StateOrderValid   State = "order_valid"
	StateDownloaded   State = "downloaded"
	StateFailed       State = "failed"
)

// Terminal reports whether the attempt can make no further progress.
func (s State) Terminal() bool {
	return s == StateDownloaded || s == StateFailed
}

// attempt is the working set of a single issuance. It is transient: discarded
// after certificate retrieval or terminal failure, never reused.
type attempt struct {
	state   State
	domains []string

	order *acme.Order

	// PEM pair for the issued certificate; the private key is generated fresh
	// at finalize time, never the account key.
	chainPEM []byte
	keyPEM   []byte

	err error
}

func newAttempt(domains []string) *attempt {
	return &attempt{state: StateNoAccount, domains: domains}
}

// to moves the attempt forward. Panics on a transition the state machine does
// not define, which keeps illegal sequences loud in tests.
func (a *attempt) to(next State) {
	if !validTransition(a.state, next) {
		panic(fmt.Sprintf("acmeclient: illegal state transition %s -> %s", a.state, next))
	}
	a.state = next
}

// fail marks the attempt terminally failed with the classified error.
func (a *attempt) fail(err error) {
	a.state = StateFailed
	a.err = err
}

func validTransition(from, to State) bool {
	switch from {
	case StateNoAccount:
		return to == StateRegistered
	case StateRegistered:
		return to == StateOrderCreated
	case StateOrderCreated:
		return to == StateAuthorizing || to == StateOrderReady
	case StateAuthorizing:
		return to == StateOrderReady
	case StateOrderReady:
		return to == StateFinalizing
	case StateFinalizing:
		return to == StateOrderValid
	case StateOrderValid:
		return to == StateDownloaded
	default:
		return false
	}
}
