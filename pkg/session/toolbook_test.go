package session

import "testing"

func TestToolBookPairing(t *testing.T) {
	tests := []struct {
		name     string
		starts   []string
		result   string
		wantID   string
		wantPair pairing
		wantOpen int
	}{
		{
			name:     "matching id pairs directly",
			starts:   []string{"t1", "t2"},
			result:   "t2",
			wantID:   "t2",
			wantPair: pairMatched,
			wantOpen: 1,
		},
		{
			name:     "unknown id pairs with oldest open call",
			starts:   []string{"t1", "t2"},
			result:   "t-unknown",
			wantID:   "t1",
			wantPair: pairFallback,
			wantOpen: 1,
		},
		{
			name:     "no open calls leaves the result orphaned",
			starts:   nil,
			result:   "t1",
			wantID:   "t1",
			wantPair: pairOrphan,
			wantOpen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newToolBook()

			for _, id := range tt.starts {
				book.start(id, "tool-"+id)
			}

			gotID, gotPair := book.result(tt.result)

			if gotID != tt.wantID {
				t.Errorf("paired id = %q, want %q", gotID, tt.wantID)
			}

			if gotPair != tt.wantPair {
				t.Errorf("pairing = %d, want %d", gotPair, tt.wantPair)
			}

			if len(book.open) != tt.wantOpen {
				t.Errorf("open calls = %d, want %d", len(book.open), tt.wantOpen)
			}
		})
	}
}

func TestToolBookDuplicateResult(t *testing.T) {
	book := newToolBook()
	book.start("t1", "bash")

	if _, pair := book.result("t1"); pair != pairMatched {
		t.Fatalf("first result should match, got %d", pair)
	}

	if _, pair := book.result("t1"); pair != pairDuplicate {
		t.Fatalf("second result should be a duplicate, got %d", pair)
	}
}

func TestToolBookDuplicateStartKeepsFirstName(t *testing.T) {
	book := newToolBook()
	book.start("t1", "bash")
	book.start("t1", "read_file")

	if got := book.name("t1"); got != "bash" {
		t.Fatalf("name = %q, want bash", got)
	}

	if len(book.open) != 1 {
		t.Fatalf("open calls = %d, want 1", len(book.open))
	}
}
