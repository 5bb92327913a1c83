package domain

import (
	"fmt"
	"time"
)

// RegistrationBundle is a registration captured offline on a device and
// uploaded later as one message.
type RegistrationBundle struct {
	BundleID   string         `json:"bundle_id"`
	WorkerID   string         `json:"worker_id"`
	Family     FamilyInput    `json:"family"`
	Members    []BundleMember `json:"members"`
	CapturedAt time.Time      `json:"captured_at"`
}

// BundleMember is one member form plus its specialization, if any.
// A Pregnancy record answers the pregnancy prompt with "Yes".
type BundleMember struct {
	Member    MemberInput              `json:"member"`
	Pregnancy *PregnancySpecialization `json:"pregnancy,omitempty"`
	Child     *ChildSpecialization     `json:"child,omitempty"`
}

// Replay runs a bundle through the same transitions a live session takes and
// returns the session in Overview, validated for submit.
func (w *Workflow) Replay(b *RegistrationBundle) (*Session, error) {
	s := w.NewSession(b.WorkerID)
	if err := w.SaveFamily(s, b.Family); err != nil {
		return nil, err
	}
	for i, bm := range b.Members {
		if i > 0 {
			if err := w.AddAnotherMember(s); err != nil {
				return nil, err
			}
		}
		if _, err := w.SaveMember(s, bm.Member); err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		if s.State == StatePregnancyPrompt {
			if _, err := w.AnswerPregnancyPrompt(s, bm.Pregnancy != nil); err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
		}
		switch s.State {
		case StatePregnancyForm:
			if _, err := w.SavePregnancy(s, *bm.Pregnancy); err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
		case StateChildForm:
			child := DefaultChild()
			if bm.Child != nil {
				child = *bm.Child
			}
			if _, err := w.SaveChild(s, child); err != nil {
				return nil, fmt.Errorf("member %d: %w", i, err)
			}
		}
	}
	if err := w.ValidateForSubmit(s); err != nil {
		return nil, err
	}
	return s, nil
}
