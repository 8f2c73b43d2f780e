// Package resolver maps a loose spoken unit reference to exactly one
// canonical unit instance. Strategies run in a fixed order and the first
// one producing candidates wins; ties are broken deterministically
// instead of failing.
package resolver

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"warvox/internal/state"
	"warvox/internal/types"
)

// Status discriminates the resolution result. Never a bare nil: callers
// switch on Status.
type Status string

const (
	StatusResolved  Status = "resolved"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
)

// Resolution is the outcome of resolving one spoken reference.
type Resolution struct {
	Status     Status
	Unit       *state.UnitInstance
	Candidates []*state.UnitInstance
	Strategy   string
}

// Resolver matches spoken references against a session snapshot.
type Resolver struct {
	aliases map[string]string // normalized alias -> unit name or id
	logger  *zap.Logger
}

// New creates a resolver. The alias table maps spoken nicknames to
// canonical unit names or ids ("termies" -> "Terminator Squad").
func New(aliases map[string]string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := make(map[string]string, len(aliases))
	for alias, target := range aliases {
		normalized[normalize(alias)] = target
	}
	return &Resolver{aliases: normalized, logger: logger}
}

type strategy struct {
	name  string
	match func(r *Resolver, reference string, units []*state.UnitInstance) []*state.UnitInstance
}

// Strategy order per resolution contract: exact name, partial name,
// datasheet template, configured alias.
var strategies = []strategy{
	{"exact_name", (*Resolver).matchExact},
	{"partial_name", (*Resolver).matchPartial},
	{"template_name", (*Resolver).matchTemplate},
	{"alias", (*Resolver).matchAlias},
}

// Resolve finds the unit for a spoken reference on the given side.
// Multiple equally-good candidates are tie-broken deterministically:
// most recently referenced first, then longest name (most specific),
// then smallest id. The losing candidates are reported on the result.
func (r *Resolver) Resolve(reference string, side types.Side, session *state.SessionState) Resolution {
	res := r.resolve(reference, side, session, true)
	if res.Status == StatusResolved {
		r.logger.Debug("unit resolved",
			zap.String("reference", reference),
			zap.String("unit_id", res.Unit.ID),
			zap.String("strategy", res.Strategy))
	}
	return res
}

// ResolveStrict is Resolve without the tie-break: several equally-good
// candidates yield StatusAmbiguous with the candidate list.
func (r *Resolver) ResolveStrict(reference string, side types.Side, session *state.SessionState) Resolution {
	return r.resolve(reference, side, session, false)
}

func (r *Resolver) resolve(reference string, side types.Side, session *state.SessionState, tieBreak bool) Resolution {
	ref := strings.TrimSpace(reference)
	if ref == "" || session == nil {
		return Resolution{Status: StatusNotFound}
	}

	units := make([]*state.UnitInstance, 0, len(session.Units))
	for _, u := range session.Units {
		if side != "" && u.Side != side {
			continue
		}
		units = append(units, u)
	}
	// Map iteration order is random; fix it so every run sees the same
	// candidate order.
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })

	for _, s := range strategies {
		candidates := s.match(r, ref, units)
		switch {
		case len(candidates) == 0:
			continue
		case len(candidates) == 1:
			return Resolution{Status: StatusResolved, Unit: candidates[0], Strategy: s.name}
		case tieBreak:
			ordered := orderCandidates(candidates)
			return Resolution{
				Status:     StatusResolved,
				Unit:       ordered[0],
				Candidates: ordered[1:],
				Strategy:   s.name,
			}
		default:
			return Resolution{Status: StatusAmbiguous, Candidates: orderCandidates(candidates), Strategy: s.name}
		}
	}
	return Resolution{Status: StatusNotFound}
}

// orderCandidates applies the documented tie-break: most recently
// referenced, then longest (most specific) name, then smallest id.
func orderCandidates(candidates []*state.UnitInstance) []*state.UnitInstance {
	ordered := append([]*state.UnitInstance(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.LastReferenced.Equal(b.LastReferenced) {
			return a.LastReferenced.After(b.LastReferenced)
		}
		if len(a.Name) != len(b.Name) {
			return len(a.Name) > len(b.Name)
		}
		return a.ID < b.ID
	})
	return ordered
}

func (r *Resolver) matchExact(reference string, units []*state.UnitInstance) []*state.UnitInstance {
	var out []*state.UnitInstance
	ref := normalize(reference)
	for _, u := range units {
		if strings.EqualFold(reference, u.Name) || ref == normalize(u.Name) {
			out = append(out, u)
		}
	}
	return out
}

func (r *Resolver) matchPartial(reference string, units []*state.UnitInstance) []*state.UnitInstance {
	var out []*state.UnitInstance
	ref := normalize(reference)
	if ref == "" {
		return nil
	}
	for _, u := range units {
		if partialMatch(ref, normalize(u.Name)) {
			out = append(out, u)
		}
	}
	return out
}

func (r *Resolver) matchTemplate(reference string, units []*state.UnitInstance) []*state.UnitInstance {
	var out []*state.UnitInstance
	ref := normalize(reference)
	for _, u := range units {
		if u.Datasheet == "" {
			continue
		}
		sheet := normalize(u.Datasheet)
		if ref == sheet || partialMatch(ref, sheet) {
			out = append(out, u)
		}
	}
	return out
}

func (r *Resolver) matchAlias(reference string, units []*state.UnitInstance) []*state.UnitInstance {
	target, ok := r.aliases[normalize(reference)]
	if !ok {
		return nil
	}
	var out []*state.UnitInstance
	targetNorm := normalize(target)
	for _, u := range units {
		if u.ID == target || normalize(u.Name) == targetNorm {
			out = append(out, u)
		}
	}
	return out
}

// fillerWords are dropped before matching; they carry no identity.
var fillerWords = map[string]bool{
	"my": true, "the": true, "a": true, "an": true, "our": true,
	"their": true, "his": true, "her": true, "that": true, "those": true,
	"unit": true, "squad": true, "of": true,
}

// normalize lowercases, strips punctuation and filler words.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		if !fillerWords[f] {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// partialMatch reports whether a normalized reference plausibly names a
// normalized unit name: containment either way, or every reference token
// prefix-matching some name token (handles spoken plurals, "terminators"
// vs "Terminator Squad").
func partialMatch(ref, name string) bool {
	if ref == "" || name == "" {
		return false
	}
	if strings.Contains(name, ref) || strings.Contains(ref, name) {
		return true
	}
	refTokens := strings.Fields(ref)
	nameTokens := strings.Fields(name)
	for _, rt := range refTokens {
		matched := false
		for _, nt := range nameTokens {
			if tokenMatch(rt, nt) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return len(refTokens) > 0
}

// tokenMatch accepts prefix relations of at least four characters so
// spoken plurals like "terminators"/"terminator" line up without a
// string-distance dependency.
func tokenMatch(a, b string) bool {
	if a == b {
		return true
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 4 {
		return false
	}
	return strings.HasPrefix(longer, shorter)
}
