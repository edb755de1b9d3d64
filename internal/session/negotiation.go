package session

// negotiation tracks the single outstanding remote move request.
// Tags increase monotonically for the controller's lifetime, so a reply
// carrying an older tag can never be mistaken for the current one.
type negotiation struct {
	awaiting bool
	tag      uint64
	next     uint64
}

// requestSent moves Idle → AwaitingRemote and returns the new tag.
func (n *negotiation) requestSent() uint64 {
	n.next++
	n.tag = n.next
	n.awaiting = true
	return n.tag
}

// responseReceived moves AwaitingRemote{tag} → Idle; false means the reply is stale.
func (n *negotiation) responseReceived(tag uint64) bool {
	if !n.awaiting || tag != n.tag {
		return false
	}
	n.awaiting = false
	return true
}

// requestFailed has the same transition as responseReceived.
func (n *negotiation) requestFailed(tag uint64) bool {
	return n.responseReceived(tag)
}

// abandon drops any outstanding request without waiting for it.
func (n *negotiation) abandon() {
	n.awaiting = false
}
