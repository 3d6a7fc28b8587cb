package console

// BoundedLog keeps the most recent entries, newest first.
type BoundedLog struct {
	capacity int
	entries  []string
}

func NewBoundedLog(capacity int) *BoundedLog {
	return &BoundedLog{capacity: capacity, entries: make([]string, 0, capacity)}
}

func (l *BoundedLog) Add(entry string) {
	if l.capacity <= 0 {
		return
	}
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, "")
	}
	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = entry
}

func (l *BoundedLog) Entries() []string {
	return append([]string{}, l.entries...)
}

func (l *BoundedLog) Len() int { return len(l.entries) }
