package bela

import "sort"

// Turn is one potential turn-taking: two adjacent utterances from
// different persons whose gap is within the turn threshold.
type Turn struct {
	From       *Utterance `json:"from"`
	To         *Utterance `json:"to"`
	FromPerson *Person    `json:"-"`
	ToPerson   *Person    `json:"-"`

	// Gap is the delay between the first utterance's end and the
	// second one's start, in milliseconds. Negative for overlaps.
	Gap int64 `json:"gap"`
}

// Turns finds potential turn-takings across the whole transcript.
// threshold is the maximum absolute gap in milliseconds; pass a
// non-positive value for the convention default.
func (t *Transcript) Turns(threshold int64) []Turn {
	if threshold <= 0 {
		threshold = DefaultTurnThreshold
	}

	type owned struct {
		u *Utterance
		p *Person
	}
	var all []owned
	for _, p := range t.Persons {
		if p.Role == RoleTranscriber {
			continue
		}
		for _, u := range p.Utterances {
			all = append(all, owned{u, p})
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].u.Start < all[j].u.Start })

	var turns []Turn
	for i := 0; i+1 < len(all); i++ {
		cur, next := all[i], all[i+1]
		if cur.p == next.p {
			continue
		}
		gap := next.u.Start - cur.u.End
		if gap <= threshold && -gap <= threshold {
			turns = append(turns, Turn{
				From:       cur.u,
				To:         next.u,
				FromPerson: cur.p,
				ToPerson:   next.p,
				Gap:        gap,
			})
		}
	}
	return turns
}
