package game

// IDAllocator hands out stable identities for agents and stations.
type IDAllocator interface {
	Next() uint32
	// Peek returns the ID the next call to Next will return.
	Peek() uint32
	// Reset makes next the next ID handed out.
	Reset(next uint32)
}

// SequentialIDs allocates increasing IDs starting at 1.
type SequentialIDs struct {
	next uint32
}

// NewSequentialIDs creates an allocator whose first ID is 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{next: 1}
}

func (s *SequentialIDs) Next() uint32 {
	id := s.next
	s.next++
	return id
}

func (s *SequentialIDs) Peek() uint32 { return s.next }

func (s *SequentialIDs) Reset(next uint32) {
	if next == 0 {
		next = 1
	}
	s.next = next
}
