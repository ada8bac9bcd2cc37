package session

/*
toolBook tracks the tool calls of one session: every id the agent ever
started, mapped to its tool name, plus the ordered list of calls still
waiting for a result. It lives inside the session so cleanup is a
single deallocation.
*/
type toolBook struct {
	names map[string]string
	open  []string
}

type pairing int

const (
	pairNone pairing = iota
	pairMatched
	pairDuplicate
	pairFallback
	pairOrphan
)

func newToolBook() *toolBook {
	return &toolBook{names: make(map[string]string)}
}

func (book *toolBook) start(id, name string) {
	// First registration wins on duplicate starts.
	if _, exists := book.names[id]; exists {
		return
	}

	book.names[id] = name
	book.open = append(book.open, id)
}

/*
result resolves which call a result belongs to. A known open id is a
match; a known but already closed id is a duplicate delivery; an
unknown id pairs with the oldest still-open call when one exists and is
an orphan otherwise.
*/
func (book *toolBook) result(id string) (string, pairing) {
	if _, known := book.names[id]; known {
		if book.close(id) {
			return id, pairMatched
		}

		return id, pairDuplicate
	}

	if len(book.open) > 0 {
		oldest := book.open[0]
		book.close(oldest)

		return oldest, pairFallback
	}

	return id, pairOrphan
}

func (book *toolBook) close(id string) bool {
	for i, openID := range book.open {
		if openID == id {
			book.open = append(book.open[:i], book.open[i+1:]...)
			return true
		}
	}

	return false
}

func (book *toolBook) name(id string) string {
	return book.names[id]
}
