package censor

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RiskLevel is the ordered verdict scale. Higher is riskier.
type RiskLevel int

const (
	// Fallback is an internal sentinel; it is never returned to callers.
	Fallback RiskLevel = -1
	Pass     RiskLevel = 0
	Review   RiskLevel = 1
	Block    RiskLevel = 2
)

func (r RiskLevel) String() string {
	switch r {
	case Fallback:
		return "fallback"
	case Pass:
		return "pass"
	case Review:
		return "review"
	case Block:
		return "block"
	default:
		return fmt.Sprintf("risk(%d)", int(r))
	}
}

// ParseRiskLevel accepts either the lower-case name or the integer value.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pass", "0":
		return Pass, nil
	case "review", "1":
		return Review, nil
	case "block", "2":
		return Block, nil
	}
	return Fallback, fmt.Errorf("unknown risk level: %q", s)
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	lvl, err := ParseRiskLevel(string(b))
	if err != nil {
		return err
	}
	*r = lvl
	return nil
}

// ReasonSet is an unordered, de-duplicated set of reason strings.
type ReasonSet map[string]struct{}

func NewReasonSet(reasons ...string) ReasonSet {
	s := make(ReasonSet, len(reasons))
	for _, r := range reasons {
		s.Add(r)
	}
	return s
}

// Add inserts a reason. Empty strings are ignored.
func (s ReasonSet) Add(reason string) {
	if reason == "" {
		return
	}
	s[reason] = struct{}{}
}

func (s ReasonSet) Has(reason string) bool {
	_, ok := s[reason]
	return ok
}

// Merge adds every reason of other into s.
func (s ReasonSet) Merge(other ReasonSet) {
	for r := range other {
		s[r] = struct{}{}
	}
}

// List returns the reasons in sorted order.
func (s ReasonSet) List() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (s ReasonSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.List())
}

func (s *ReasonSet) UnmarshalJSON(b []byte) error {
	var l []string
	if err := json.Unmarshal(b, &l); err != nil {
		return err
	}
	*s = NewReasonSet(l...)
	return nil
}

// Verdict is what a detector returns for one piece of content.
type Verdict struct {
	Risk    RiskLevel
	Reasons ReasonSet
}

func PassVerdict() Verdict {
	return Verdict{Risk: Pass, Reasons: ReasonSet{}}
}

func NewVerdict(risk RiskLevel, reasons ...string) Verdict {
	return Verdict{Risk: risk, Reasons: NewReasonSet(reasons...)}
}

// Aggregate combines verdicts by taking the highest risk level and the union
// of all reasons. An empty input aggregates to Pass with no reasons.
func Aggregate(verdicts ...Verdict) Verdict {
	out := PassVerdict()
	for _, v := range verdicts {
		if v.Risk > out.Risk {
			out.Risk = v.Risk
		}
		out.Reasons.Merge(v.Reasons)
	}
	return out
}
