package ho

// PendingPoints returns the points of every Pending or Running trial in the
// ledger, across all phases, ordered by trial ID with duplicates removed.
// Generators receive this set so they never re-suggest an in-flight point.
func PendingPoints(l *Ledger) []Point {
	ids := l.NonTerminal()
	seen := make(map[string]struct{}, len(ids))
	out := make([]Point, 0, len(ids))

	for _, id := range ids {
		for _, p := range l.records[id].Points {
			key := p.Key()
			if _, dup := seen[key]; dup {
				continue
			}

			seen[key] = struct{}{}
			out = append(out, p.Clone())
		}
	}

	return out
}
