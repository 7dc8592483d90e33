// Package scheduler places task occurrences into a day/slot/site grid without
// double-booking a site or a resource.
//
// A call is self-contained: every occupancy map is allocated per call, so
// Schedule is safe for concurrent use and returns identical output for
// identical input. Infeasibility is reported through Diagnostics; the only
// error Schedule returns wraps ErrInvalidInput.
package scheduler

// Schedule validates req, applies the capacity bound and runs the greedy
// assignment engine.
func Schedule(req Request) (*Result, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	capacity := PreCheck(req)
	if capacity.Exceeded() {
		return &Result{
			Schedule:    []Entry{},
			Diagnostics: reportCapacity(req.Tasks, capacity),
			Fulfillment: fulfillmentFor(req.Tasks, make([]int, len(req.Tasks))),
			Stats:       buildStats(req.Tasks, capacity, nil),
			Outcome:     OutcomeCapacityInfeasible,
		}, nil
	}

	eng := newEngine(req)
	achieved := eng.run()
	entries := eng.entries()

	tally := fulfillmentFor(req.Tasks, achieved)
	diagnostics, outcome := report(tally)

	return &Result{
		Schedule:    entries,
		Diagnostics: diagnostics,
		Fulfillment: tally,
		Stats:       buildStats(req.Tasks, capacity, entries),
		Outcome:     outcome,
	}, nil
}
