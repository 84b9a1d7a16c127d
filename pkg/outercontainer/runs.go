package outercontainer

// run is one contiguous sequence of same-key parameter occurrences.
type run struct {
	Key    string
	Values []string
}

// buildRuns groups closed parameter occurrences into contiguous same-key
// runs, in document order (spec.md §4.8: "contiguous repetitions of the
// same K form an array"). A key that reappears after a different key's run
// has already ended is rejected rather than modifying the sealed run or
// starting a new one; rejects preserves the rejected occurrences in order
// for the caller to report via onError.
func buildRuns(occs []paramOcc) (runs []run, rejects []paramOcc) {
	sealed := map[string]bool{}
	for _, o := range occs {
		if len(runs) > 0 && runs[len(runs)-1].Key == o.Key {
			runs[len(runs)-1].Values = append(runs[len(runs)-1].Values, o.Value)
			continue
		}
		if sealed[o.Key] {
			rejects = append(rejects, o)
			continue
		}
		if len(runs) > 0 {
			sealed[runs[len(runs)-1].Key] = true
		}
		runs = append(runs, run{Key: o.Key, Values: []string{o.Value}})
	}
	return runs, rejects
}
