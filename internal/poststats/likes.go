package poststats

// LikeState is the ordered set of users who like a post. A user appears at most once.
type LikeState []uint

func (l LikeState) Contains(userID uint) bool {
	for _, id := range l {
		if id == userID {
			return true
		}
	}
	return false
}

// Toggle returns a new set with the user's membership flipped. Removal keeps the order of
// the remaining ids; addition appends.
func (l LikeState) Toggle(userID uint) LikeState {
	out := make(LikeState, 0, len(l)+1)
	removed := false
	for _, id := range l {
		if id == userID {
			removed = true
			continue
		}
		out = append(out, id)
	}
	if !removed {
		out = append(out, userID)
	}
	return out
}

// normalizeLikes drops duplicate ids, keeping the first occurrence
func normalizeLikes(ids []uint) LikeState {
	seen := make(map[uint]struct{}, len(ids))
	out := make(LikeState, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
