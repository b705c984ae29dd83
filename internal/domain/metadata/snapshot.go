package metadata

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/ehr/formula-engine/internal/expression"
)

// Snapshot is an immutable in-memory index over a set of metadata objects.
// It resolves references for validation and description and supplies the
// constant and org unit group maps for evaluation. Safe for concurrent use.
type Snapshot struct {
	byClass map[expression.ObjectClass]map[string]*Object
	ordered []*Object
	names   []string
}

func NewSnapshot(objs []*Object) *Snapshot {
	s := &Snapshot{byClass: make(map[expression.ObjectClass]map[string]*Object)}
	for _, o := range objs {
		m := s.byClass[o.Class]
		if m == nil {
			m = make(map[string]*Object)
			s.byClass[o.Class] = m
		}
		m[o.UID] = o
	}
	for _, class := range expression.ObjectClasses {
		uids := make([]string, 0, len(s.byClass[class]))
		for uid := range s.byClass[class] {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		for _, uid := range uids {
			o := s.byClass[class][uid]
			s.ordered = append(s.ordered, o)
			s.names = append(s.names, o.Name)
		}
	}
	return s
}

func (s *Snapshot) Len() int { return len(s.ordered) }

// Objects returns every object ordered by class, then uid.
func (s *Snapshot) Objects() []*Object { return s.ordered }

func (s *Snapshot) Object(class expression.ObjectClass, uid string) (*Object, bool) {
	o, ok := s.byClass[class][uid]
	return o, ok
}

func (s *Snapshot) ObjectName(class expression.ObjectClass, uid string) (string, bool) {
	o, ok := s.Object(class, uid)
	if !ok {
		return "", false
	}
	return o.Name, true
}

func (s *Snapshot) Constants() map[string]float64 {
	out := make(map[string]float64, len(s.byClass[expression.ClassConstant]))
	for uid, o := range s.byClass[expression.ClassConstant] {
		if o.Value != nil {
			out[uid] = *o.Value
		}
	}
	return out
}

func (s *Snapshot) OrgUnitGroupCounts() map[string]int {
	out := make(map[string]int, len(s.byClass[expression.ClassOrganisationUnitGroup]))
	for uid, o := range s.byClass[expression.ClassOrganisationUnitGroup] {
		if o.MemberCount != nil {
			out[uid] = *o.MemberCount
		}
	}
	return out
}

// Bind fills the constant and org unit group maps of in that the caller left
// nil.
func (s *Snapshot) Bind(in expression.Input) expression.Input {
	if in.Constants == nil {
		in.Constants = s.Constants()
	}
	if in.OrgUnitGroupCounts == nil {
		in.OrgUnitGroupCounts = s.OrgUnitGroupCounts()
	}
	return in
}

type Match struct {
	Object   *Object `json:"object"`
	Distance int     `json:"distance"`
}

// Search ranks objects whose name fuzzily contains query, closest first. An
// exact uid match always ranks first. class restricts the search unless it
// is empty; limit <= 0 means no limit.
func (s *Snapshot) Search(query string, class expression.ObjectClass, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var matches []Match
	seen := make(map[*Object]bool)
	for _, o := range s.ordered {
		if o.UID == query && (class == "" || o.Class == class) {
			matches = append(matches, Match{Object: o})
			seen[o] = true
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(query, s.names)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	for _, r := range ranks {
		o := s.ordered[r.OriginalIndex]
		if seen[o] || (class != "" && o.Class != class) {
			continue
		}
		matches = append(matches, Match{Object: o, Distance: r.Distance})
	}

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Suggest returns the object whose uid is closest to uid by edit distance,
// for "did you mean" hints on unresolved references. Matches further than a
// third of the uid length are not suggestions.
func (s *Snapshot) Suggest(class expression.ObjectClass, uid string) (*Object, bool) {
	maxDistance := len(uid) / 3
	if maxDistance < 1 {
		maxDistance = 1
	}

	var best *Object
	bestDistance := maxDistance + 1
	for _, o := range s.ordered {
		if class != "" && o.Class != class {
			continue
		}
		if d := fuzzy.LevenshteinDistance(strings.ToLower(uid), strings.ToLower(o.UID)); d < bestDistance {
			best, bestDistance = o, d
		}
	}
	return best, best != nil
}
