package poststats

import (
	"errors"

	"github.com/anonto42/postacad/backend/internal/savequeue"
)

// Phase tells how far the displayed save flag can be trusted
type Phase string

const (
	// PhaseConfirmed: displayed equals the last known backend truth and nothing is pending
	PhaseConfirmed Phase = "confirmed"
	// PhaseOptimistic: displayed reflects user intent that is still queued or in flight
	PhaseOptimistic Phase = "optimistic"
	// PhaseReverting: a queued action failed; displayed falls back to confirmed truth once
	// the remaining actions drain
	PhaseReverting Phase = "reverting"
)

// SaveState reconciles the optimistic save flag with backend outcomes. It is not safe for
// concurrent use; PostStats guards it.
type SaveState struct {
	displayed bool
	confirmed bool
	recordID  string
	pending   int
	phase     Phase
	// resolved counts applied outcomes; a refetch taken before the latest one is stale
	resolved uint64
}

func NewSaveState(recordID string) SaveState {
	return SaveState{
		displayed: recordID != "",
		confirmed: recordID != "",
		recordID:  recordID,
		phase:     PhaseConfirmed,
	}
}

func (s *SaveState) Displayed() bool { return s.displayed }
func (s *SaveState) Confirmed() bool { return s.confirmed }
func (s *SaveState) RecordID() string { return s.recordID }
func (s *SaveState) Pending() int { return s.pending }
func (s *SaveState) Phase() Phase { return s.phase }
func (s *SaveState) Resolved() uint64 { return s.resolved }

// Toggle flips the displayed flag and returns the queue item expressing the new intent.
// A delete never carries a record id: the record it targets is only known once the actions
// queued before it have run, so the queue resolves it right before executing the delete.
func (s *SaveState) Toggle(postID string, userID uint) savequeue.Item {
	s.displayed = !s.displayed
	s.pending++
	s.phase = PhaseOptimistic

	item := savequeue.Item{PostID: postID, UserID: userID}
	if s.displayed {
		item.Action = savequeue.ActionSave
	} else {
		item.Action = savequeue.ActionDelete
	}
	return item
}

// Resolve applies the terminal outcome of one queued item
func (s *SaveState) Resolve(out savequeue.Outcome) {
	s.resolved++
	if s.pending > 0 {
		s.pending--
	}

	switch {
	case out.Err == nil && out.Item.Action == savequeue.ActionSave:
		s.confirmed = true
		s.recordID = out.Result.RecordID
	case out.Err == nil && out.Item.Action == savequeue.ActionDelete:
		s.confirmed = false
		s.recordID = ""
	case errors.Is(out.Err, savequeue.ErrNoRecord):
		// nothing was persisted, so there was nothing to delete
		s.confirmed = false
		s.recordID = ""
	default:
		s.phase = PhaseReverting
	}

	if s.pending == 0 {
		s.displayed = s.confirmed
		s.phase = PhaseConfirmed
	}
}

// Sync applies backend truth fetched after observing Resolved() == seen. A fetch that an
// outcome overtook is dropped and Sync reports false. The displayed flag only follows the
// fetched truth when no action is pending; otherwise the pending actions decide.
func (s *SaveState) Sync(recordID string, seen uint64) bool {
	if seen != s.resolved {
		return false
	}
	s.confirmed = recordID != ""
	s.recordID = recordID
	if s.pending == 0 {
		s.displayed = s.confirmed
		s.phase = PhaseConfirmed
	}
	return true
}
