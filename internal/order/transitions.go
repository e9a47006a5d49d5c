package order

// The transition table is the single owner of status-change legality.
// Every mutating entry point consults it; nothing else compares
// statuses. Each forward edge is attributable to exactly one role, and
// no edge skips an intermediate state except the jump to CANCELLED.

type transitionKey struct {
	Role Role
	From Status
	To   Status
}

var allowedTransitions = map[transitionKey]bool{
	// Admin walks the payment review queue forward and owns the
	// emergency exit from every non-terminal state.
	{RoleAdmin, StatusPendingPayment, StatusPaymentReceived}:  true,
	{RoleAdmin, StatusPaymentReceived, StatusDeliveryPending}: true,
	{RoleAdmin, StatusDelivered, StatusCompleted}:             true,
	{RoleAdmin, StatusPendingPayment, StatusCancelled}:        true,
	{RoleAdmin, StatusPaymentReceived, StatusCancelled}:       true,
	{RoleAdmin, StatusDeliveryPending, StatusCancelled}:       true,
	{RoleAdmin, StatusDelivered, StatusCancelled}:             true,

	// Seller reaches DELIVERED only by uploading delivery proof.
	{RoleSeller, StatusPaymentReceived, StatusDelivered}: true,
	{RoleSeller, StatusDeliveryPending, StatusDelivered}: true,

	// Buyer closes the loop after delivery.
	{RoleBuyer, StatusDelivered, StatusCompleted}: true,
}

// CanTransition reports whether role may move an order from one status
// to another. A no-op (from == to) is never a legal transition.
func CanTransition(role Role, from, to Status) bool {
	return allowedTransitions[transitionKey{role, from, to}]
}

// NextStatuses returns every status reachable from the given one by the
// given role. Empty for terminal states.
func NextStatuses(role Role, from Status) []Status {
	var out []Status
	for _, to := range []Status{
		StatusPendingPayment, StatusPaymentReceived, StatusDeliveryPending,
		StatusDelivered, StatusCompleted, StatusCancelled,
	} {
		if CanTransition(role, from, to) {
			out = append(out, to)
		}
	}
	return out
}
