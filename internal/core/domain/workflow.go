package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type WorkflowState string

const (
	StateAddFamily       WorkflowState = "add_family"
	StateAddMember       WorkflowState = "add_member"
	StatePregnancyPrompt WorkflowState = "pregnancy_prompt"
	StatePregnancyForm   WorkflowState = "pregnancy_form"
	StateChildForm       WorkflowState = "child_form"
	StateOverview        WorkflowState = "overview"
)

// Session is one worker's registration in progress.
// Draft holds the member waiting for the pregnancy prompt or a specialization form.
// Editing is the index of the member the draft replaces when it came from an edit.
type Session struct {
	ID        uuid.UUID     `json:"id"`
	WorkerID  string        `json:"worker_id"`
	State     WorkflowState `json:"state"`
	Family    Family        `json:"family"`
	Draft     *Member       `json:"draft,omitempty"`
	Editing   *int          `json:"editing,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Workflow applies registration transitions to sessions.
// It holds no per-session state.
type Workflow struct {
	classifier *RiskClassifier
	now        func() time.Time
}

func NewWorkflow(classifier *RiskClassifier) *Workflow {
	if classifier == nil {
		classifier = defaultClassifier
	}
	return &Workflow{classifier: classifier, now: time.Now}
}

// WithClock replaces the time source used for session timestamps
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

func (w *Workflow) Classifier() *RiskClassifier {
	return w.classifier
}

// NewSession starts an empty registration in AddFamily
func (w *Workflow) NewSession(workerID string) *Session {
	now := w.now().UTC()
	return &Session{
		ID:        uuid.New(),
		WorkerID:  workerID,
		State:     StateAddFamily,
		Family:    Family{Members: []*Member{}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (w *Workflow) expect(s *Session, action string, states ...WorkflowState) error {
	for _, st := range states {
		if s.State == st {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidTransition, action, s.State)
}

func (w *Workflow) touch(s *Session, next WorkflowState) {
	s.State = next
	s.UpdatedAt = w.now().UTC()
}

// SaveFamily stores the family fields. Nothing is validated until submit.
func (w *Workflow) SaveFamily(s *Session, in FamilyInput) error {
	if err := w.expect(s, "save family", StateAddFamily); err != nil {
		return err
	}
	applyFamily(&s.Family, in)
	w.touch(s, StateAddMember)
	return nil
}

// UpdateFamily edits the family fields without changing state
func (w *Workflow) UpdateFamily(s *Session, in FamilyInput) error {
	if err := w.expect(s, "update family", StateAddMember, StateOverview); err != nil {
		return err
	}
	applyFamily(&s.Family, in)
	w.touch(s, s.State)
	return nil
}

func applyFamily(f *Family, in FamilyInput) {
	f.Village = in.Village
	f.HeadName = in.HeadName
	f.Mobile = in.Mobile
	f.HouseNumber = in.HouseNumber
	f.HealthID = in.HealthID
}

// SaveMember routes the member by gender and age. The returned member is
// non-nil only when it was finalized directly as General.
func (w *Workflow) SaveMember(s *Session, in MemberInput) (*Member, error) {
	if err := w.expect(s, "save member", StateAddMember); err != nil {
		return nil, err
	}
	s.Editing = nil
	return w.route(s, NewMember(in)), nil
}

// route holds the draft for the prompt or child form its category needs, or
// finalizes it as General
func (w *Workflow) route(s *Session, draft *Member) *Member {
	s.Draft = draft
	switch CategoryFor(draft.Gender, draft.Age) {
	case CategoryPregnancy:
		w.touch(s, StatePregnancyPrompt)
		return nil
	case CategoryChild:
		if draft.Child == nil {
			child := DefaultChild()
			draft.Child = &child
		}
		w.touch(s, StateChildForm)
		return nil
	default:
		return w.finalize(s, CategoryGeneral)
	}
}

// AnswerPregnancyPrompt finalizes as General on "No" and opens the pregnancy form on "Yes"
func (w *Workflow) AnswerPregnancyPrompt(s *Session, pregnant bool) (*Member, error) {
	if err := w.expect(s, "answer pregnancy prompt", StatePregnancyPrompt); err != nil {
		return nil, err
	}
	if !pregnant {
		return w.finalize(s, CategoryGeneral), nil
	}
	if s.Draft.Pregnancy == nil {
		p := DefaultPregnancy()
		s.Draft.Pregnancy = &p
	}
	w.touch(s, StatePregnancyForm)
	return nil, nil
}

// UpdatePregnancyDraft stores the pregnancy form as entered so far without
// validating it or leaving the form
func (w *Workflow) UpdatePregnancyDraft(s *Session, p PregnancySpecialization) error {
	if err := w.expect(s, "update pregnancy draft", StatePregnancyForm); err != nil {
		return err
	}
	s.Draft.Pregnancy = &p
	w.touch(s, s.State)
	return nil
}

// UpdateChildDraft stores the child form as entered so far
func (w *Workflow) UpdateChildDraft(s *Session, c ChildSpecialization) error {
	if err := w.expect(s, "update child draft", StateChildForm); err != nil {
		return err
	}
	s.Draft.Child = &c
	w.touch(s, s.State)
	return nil
}

func (w *Workflow) SavePregnancy(s *Session, p PregnancySpecialization) (*Member, error) {
	if err := w.expect(s, "save pregnancy", StatePregnancyForm); err != nil {
		return nil, err
	}
	if verr := p.Validate(); verr != nil {
		return nil, verr
	}
	s.Draft.Pregnancy = &p
	return w.finalize(s, CategoryPregnancy), nil
}

func (w *Workflow) SaveChild(s *Session, c ChildSpecialization) (*Member, error) {
	if err := w.expect(s, "save child", StateChildForm); err != nil {
		return nil, err
	}
	if verr := c.Validate(); verr != nil {
		return nil, verr
	}
	s.Draft.Child = &c
	return w.finalize(s, CategoryChild), nil
}

// finalize computes BMI, risk and care plan, appends the draft (or puts it back
// in place of the member being edited) and moves to Overview
func (w *Workflow) finalize(s *Session, category Category) *Member {
	m := s.Draft
	m.Category = category
	if category != CategoryPregnancy {
		m.Pregnancy = nil
	}
	if category != CategoryChild {
		m.Child = nil
	}
	w.assess(m)
	if s.Editing != nil && *s.Editing < len(s.Family.Members) {
		s.Family.Members[*s.Editing] = m
	} else {
		s.Family.Members = append(s.Family.Members, m)
	}
	s.Draft = nil
	s.Editing = nil
	w.touch(s, StateOverview)
	return m
}

func (w *Workflow) assess(m *Member) {
	m.SetAnthropometry(m.WeightKg, m.HeightCm)
	m.Risk = w.classifier.Classify(m)
	m.CarePlan = GenerateCarePlan(m)
}

// EditMember re-edits the core fields of a finalized member and recomputes
// BMI, risk and care plan. When the new age or gender calls for a category the
// member does not have, the member goes back through the pregnancy prompt or
// the child form and replaces the old entry once that form is saved. A
// specialization the new age or gender no longer allows is dropped.
func (w *Workflow) EditMember(s *Session, index int, in MemberInput) (*Member, error) {
	if err := w.expect(s, "edit member", StateOverview); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(s.Family.Members) {
		return nil, fmt.Errorf("%w: index %d", ErrMemberNotFound, index)
	}
	prev := s.Family.Members[index]
	m := NewMember(in)
	m.ID = prev.ID

	target := CategoryFor(m.Gender, m.Age)
	switch {
	case prev.Category == target, prev.Category == CategoryGeneral && target == CategoryPregnancy:
		// a General woman of pregnancy age answered "No" before
		m.Category = prev.Category
		m.Pregnancy = prev.Pregnancy
		m.Child = prev.Child
	case target == CategoryGeneral:
		m.Category = CategoryGeneral
	default:
		s.Editing = &index
		return w.route(s, m), nil
	}
	w.assess(m)
	s.Family.Members[index] = m
	w.touch(s, StateOverview)
	return m, nil
}

func (w *Workflow) AddAnotherMember(s *Session) error {
	if err := w.expect(s, "add another member", StateOverview); err != nil {
		return err
	}
	w.touch(s, StateAddMember)
	return nil
}

// ValidateForSubmit checks the family head name and village and every
// member's name and age. The session stays in Overview on failure.
func (w *Workflow) ValidateForSubmit(s *Session) error {
	if err := w.expect(s, "submit", StateOverview); err != nil {
		return err
	}
	if verr := s.Family.Validate(); verr != nil {
		return verr
	}
	return nil
}

// Reset discards the registration after a successful submit
func (w *Workflow) Reset(s *Session) {
	s.Family = Family{Members: []*Member{}}
	s.Draft = nil
	s.Editing = nil
	w.touch(s, StateAddFamily)
}

// RedMembers returns the finalized members classified Red
func (s *Session) RedMembers() []*Member {
	var red []*Member
	for _, m := range s.Family.Members {
		if m.Risk.Level == RiskRed {
			red = append(red, m)
		}
	}
	return red
}
