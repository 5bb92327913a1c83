package domain

import (
	"strings"
	"time"
)

// FamilySummary is one row of the family directory
type FamilySummary struct {
	ID               string    `json:"id"`
	HeadName         string    `json:"head_name"`
	Village          string    `json:"village"`
	Mobile           string    `json:"mobile"`
	MembersCount     int       `json:"members_count"`
	HasPregnantWoman bool      `json:"has_pregnant_woman"`
	RiskLevel        RiskLevel `json:"risk_level"`
	RiskLabel        string    `json:"risk_label"`
	FollowUpDue      bool      `json:"follow_up_due"`
	RegisteredOn     time.Time `json:"registered_on"`
	Priority         int       `json:"priority"`
}

// SummarizeFamily derives the directory row. The family risk is its worst member;
// a follow-up is due when any member is Orange or Red or has missed follow-ups.
func SummarizeFamily(f *Family) FamilySummary {
	s := FamilySummary{
		ID:           f.ID,
		HeadName:     f.HeadName,
		Village:      f.Village,
		Mobile:       f.Mobile,
		MembersCount: len(f.Members),
		RiskLevel:    f.HighestRisk(),
		RegisteredOn: f.CreatedAt,
	}
	s.RiskLabel = s.RiskLevel.Label()
	for _, m := range f.Members {
		if m.Category == CategoryPregnancy {
			s.HasPregnantWoman = true
		}
		if m.Risk.Level >= RiskOrange || m.MissedFollowUps > 0 {
			s.FollowUpDue = true
		}
		if p := MemberPriority(m); p > s.Priority {
			s.Priority = p
		}
	}
	return s
}

type DirectoryTab string

const (
	TabAll          DirectoryTab = "all"
	TabHighRisk     DirectoryTab = "high-risk"
	TabFollowUpsDue DirectoryTab = "follow-ups-due"
)

func ParseDirectoryTab(raw string) DirectoryTab {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", "-")) {
	case "high-risk":
		return TabHighRisk
	case "follow-ups-due", "followups-due":
		return TabFollowUpsDue
	default:
		return TabAll
	}
}

type PregnancyStatusFilter string

const (
	PregnancyAny     PregnancyStatusFilter = ""
	PregnancyPresent PregnancyStatusFilter = "has-pregnant-woman"
	PregnancyAbsent  PregnancyStatusFilter = "no-pregnant-woman"
)

// FamilyFilter selects directory rows. Empty fields match everything.
type FamilyFilter struct {
	Query        string
	Tab          DirectoryTab
	Risk         *RiskLevel
	Village      string
	Pregnancy    PregnancyStatusFilter
	RegisteredOn *time.Time
}

func (ff FamilyFilter) Match(s FamilySummary) bool {
	if q := strings.ToLower(strings.TrimSpace(ff.Query)); q != "" {
		if !strings.Contains(strings.ToLower(s.HeadName), q) &&
			!strings.Contains(strings.ToLower(s.Village), q) &&
			!strings.Contains(s.Mobile, q) {
			return false
		}
	}
	switch ff.Tab {
	case TabHighRisk:
		if s.RiskLevel != RiskRed {
			return false
		}
	case TabFollowUpsDue:
		if !s.FollowUpDue {
			return false
		}
	}
	if ff.Risk != nil && s.RiskLevel != *ff.Risk {
		return false
	}
	if ff.Village != "" && !strings.EqualFold(s.Village, ff.Village) {
		return false
	}
	switch ff.Pregnancy {
	case PregnancyPresent:
		if !s.HasPregnantWoman {
			return false
		}
	case PregnancyAbsent:
		if s.HasPregnantWoman {
			return false
		}
	}
	if ff.RegisteredOn != nil && !dateOnly(s.RegisteredOn).Equal(dateOnly(*ff.RegisteredOn)) {
		return false
	}
	return true
}

// FilterFamilies summarizes and filters families, keeping input order
func FilterFamilies(families []*Family, ff FamilyFilter) []FamilySummary {
	out := make([]FamilySummary, 0, len(families))
	for _, f := range families {
		s := SummarizeFamily(f)
		if ff.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
