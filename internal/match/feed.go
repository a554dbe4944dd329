package match

import "sync"

// Kind classifies a commentary entry.
type Kind int

const (
	Normal Kind = iota
	Chance
	Card
	Goal
)

func (k Kind) String() string {
	switch k {
	case Chance:
		return "chance"
	case Card:
		return "card"
	case Goal:
		return "goal"
	default:
		return "normal"
	}
}

// Entry is one line of commentary.
type Entry struct {
	Minute int
	Text   string
	Kind   Kind
}

// Feed is the append-only commentary log of a run.
type Feed struct {
	mu      sync.RWMutex
	entries []Entry
}

// Append adds e as the newest entry.
func (f *Feed) Append(e Entry) {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
}

// Window returns up to n entries, newest first.
func (f *Feed) Window(n int) []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n = min(max(n, 0), len(f.entries))
	out := make([]Entry, 0, n)
	for i := len(f.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, f.entries[i])
	}
	return out
}

// Len returns the number of entries ever appended.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
