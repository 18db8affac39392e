package articles

// ledger is the append-only edit history, keyed by article id.
// It has no lock of its own; Store guards it.
type ledger struct {
	entries map[string][]EditHistoryEntry
}

func newLedger() *ledger {
	return &ledger{entries: make(map[string][]EditHistoryEntry)}
}

// append keeps entries for an article non-decreasing in EditedAt.
func (l *ledger) append(entry EditHistoryEntry) EditHistoryEntry {
	existing := l.entries[entry.ArticleID]
	if count := len(existing); count > 0 {
		last := existing[count-1]
		if entry.EditedAt.Before(last.EditedAt) {
			entry.EditedAt = last.EditedAt
		}
	}
	l.entries[entry.ArticleID] = append(existing, cloneEntry(entry))
	return entry
}

// entriesFor returns copies of the article's entries, newest first.
func (l *ledger) entriesFor(articleID string) []EditHistoryEntry {
	existing := l.entries[articleID]
	result := make([]EditHistoryEntry, 0, len(existing))
	for index := len(existing) - 1; index >= 0; index-- {
		result = append(result, cloneEntry(existing[index]))
	}
	return result
}

func (l *ledger) count(articleID string) int {
	return len(l.entries[articleID])
}

func (l *ledger) dropArticle(articleID string) int {
	removed := len(l.entries[articleID])
	delete(l.entries, articleID)
	return removed
}
