package models

// SenderCounts maps a sender address to the number of unread messages from it.
// It lives for a single run only.
type SenderCounts map[string]int

// NewSenderCounts creates an empty table
func NewSenderCounts() SenderCounts {
	return make(SenderCounts)
}

// Add counts one message from sender. Empty senders are ignored.
func (c SenderCounts) Add(sender string) {
	sender = NormalizeAddress(sender)
	if sender == "" {
		return
	}
	c[sender]++
}

// Merge adds every count from other into c
func (c SenderCounts) Merge(other SenderCounts) {
	for sender, n := range other {
		c[sender] += n
	}
}

// Total returns the number of messages counted
func (c SenderCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// ContactSet is a case-insensitive set of addresses
type ContactSet map[string]struct{}

// NewContactSet builds a set from a list of addresses
func NewContactSet(addrs []string) ContactSet {
	set := make(ContactSet, len(addrs))
	for _, addr := range addrs {
		if addr = NormalizeAddress(addr); addr != "" {
			set[addr] = struct{}{}
		}
	}
	return set
}

// Contains reports whether addr is in the set
func (s ContactSet) Contains(addr string) bool {
	_, ok := s[NormalizeAddress(addr)]
	return ok
}

// ImportantTotal sums the counts of senders that belong to contacts
func (c SenderCounts) ImportantTotal(contacts ContactSet) int {
	total := 0
	for sender, n := range c {
		if contacts.Contains(sender) {
			total += n
		}
	}
	return total
}
