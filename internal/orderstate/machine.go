package orderstate

// transitions is the allowed source -> targets adjacency from spec §4.2.
// releasing -> completed and payment_confirmed -> completed both exist: per
// DESIGN.md §"Open-question decisions" item 3, releasing is optional
// scaffolding and both edges carry identical ledger effects.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusAccepted:  true,
		StatusCancelled: true,
		StatusExpired:   true,
	},
	StatusAccepted: {
		StatusEscrowPending: true,
		StatusEscrowed:      true,
		StatusCancelled:     true,
		StatusExpired:       true,
	},
	StatusEscrowPending: {
		StatusEscrowed:  true,
		StatusCancelled: true,
	},
	StatusEscrowed: {
		StatusPaymentSent: true,
		StatusDisputed:    true,
		StatusCancelled:   true,
		StatusExpired:     true,
	},
	StatusPaymentSent: {
		StatusPaymentConfirmed: true,
		StatusDisputed:         true,
		StatusCancelled:        true,
	},
	StatusPaymentConfirmed: {
		StatusReleasing: true,
		StatusCompleted: true,
		StatusDisputed:  true,
	},
	StatusReleasing: {
		StatusCompleted: true,
		StatusDisputed:  true,
	},
	StatusDisputed: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether target is a legal edge from current,
// irrespective of actor. It returns false for any terminal source, even if a
// stale adjacency entry were to exist for it (none do).
func CanTransition(current, target Status) bool {
	if IsTerminal(current) {
		return false
	}
	return transitions[current][target]
}

// actorTargets is the per-role authorisation matrix from spec §4.2. It lists
// "payment_sent" for both user and merchant, but Authorize decides that
// target before consulting this table: only the fiat payer for the order's
// type, as resolved by PayerRole, may mark payment sent.
var actorTargets = map[ActorRole]map[Status]bool{
	ActorUser: {
		StatusPaymentSent: true,
		StatusCompleted:   true,
		StatusCancelled:   true,
		StatusDisputed:    true,
	},
	ActorMerchant: {
		StatusAccepted:         true,
		StatusEscrowed:         true,
		StatusPaymentSent:      true,
		StatusPaymentConfirmed: true,
		StatusCompleted:        true,
		StatusCancelled:        true,
		StatusDisputed:         true,
	},
	ActorSystem: {
		StatusExpired:   true,
		StatusCompleted: true,
		StatusCancelled: true,
	},
}

// ActorMayTarget reports whether role is permitted to drive a transition to
// target, independent of whether the edge itself is legal from the order's
// current status. Lifecycle callers must AND this with CanTransition.
func ActorMayTarget(role ActorRole, target Status) bool {
	return actorTargets[role][target]
}

// OrderType distinguishes the direction of a trade from the user's
// perspective.
type OrderType string

const (
	TypeBuy  OrderType = "buy"
	TypeSell OrderType = "sell"
)

// PayerRole resolves which role is the fiat payer for an order of the given
// type, per spec §4.2: "payment_sent belongs to the fiat payer, which varies
// by order type: buy => user, sell => merchant."
func PayerRole(t OrderType) ActorRole {
	if t == TypeSell {
		return ActorMerchant
	}
	return ActorUser
}

// Authorize is the single entry point the rest of the engine calls: it
// combines the state-machine adjacency check with the actor-role check,
// resolving the payment_sent special case against the order's type.
func Authorize(current, target Status, actor ActorRole, orderType OrderType) bool {
	if !CanTransition(current, target) {
		return false
	}
	if target == StatusPaymentSent {
		return actor == PayerRole(orderType)
	}
	return ActorMayTarget(actor, target)
}
