package service

// Subscription delivers checkout states in the order they were applied. When
// a subscriber falls behind, the oldest undelivered state is dropped, so the
// newest state is always available and the checkout never waits on a reader.
type Subscription struct {
	C <-chan State

	ch    chan State
	owner *CheckoutServiceImpl
}

// Subscribe registers a state observer. The current state is delivered
// immediately. buffer is how many undelivered states are kept; values below
// one mean one.
func (s *CheckoutServiceImpl) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)
	sub := &Subscription{C: ch, ch: ch, owner: s}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[sub] = struct{}{}
	sub.deliver(detached(s.state))
	return sub
}

// Close stops delivery and closes C.
func (sub *Subscription) Close() {
	s := sub.owner
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[sub]; !ok {
		return
	}
	delete(s.subscribers, sub)
	close(sub.ch)
}

// deliver must be called with the owner's lock held; the lock makes it the
// only sender.
func (sub *Subscription) deliver(st State) {
	select {
	case sub.ch <- st:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- st
}

func (s *CheckoutServiceImpl) publishLocked(st State) {
	for sub := range s.subscribers {
		sub.deliver(detached(st))
	}
}
