package scheduler

import (
	"fmt"
	"math"
	"sort"
)

func fulfillmentFor(tasks []Task, achieved []int) []Fulfillment {
	out := make([]Fulfillment, len(tasks))
	for i, task := range tasks {
		out[i] = Fulfillment{
			TaskID:       task.ID,
			TaskName:     task.Name,
			ResourceName: task.ResourceName,
			Required:     task.RequiredOccurrences,
			Achieved:     achieved[i],
			Shortfall:    task.RequiredOccurrences - achieved[i],
		}
	}
	return out
}

// report turns an engine tally into diagnostics. A task name appears once however large its shortfall.
func report(tally []Fulfillment) (Diagnostics, Outcome) {
	unassigned := make([]string, 0)
	for _, f := range tally {
		if f.Shortfall > 0 {
			unassigned = append(unassigned, f.TaskName)
		}
	}
	if len(unassigned) == 0 {
		return Diagnostics{
			IsPossible:      true,
			Message:         fmt.Sprintf("all %d task(s) fully scheduled", len(tally)),
			UnassignedTasks: unassigned,
		}, OutcomeFeasible
	}
	return Diagnostics{
		IsPossible:      false,
		Message:         fmt.Sprintf("%d task(s) could not be fully scheduled", len(unassigned)),
		UnassignedTasks: unassigned,
	}, OutcomePartial
}

func reportCapacity(tasks []Task, capacity Capacity) Diagnostics {
	names := make([]string, len(tasks))
	for i, task := range tasks {
		names[i] = task.Name
	}
	return Diagnostics{
		IsPossible:      false,
		Message:         capacity.Message(),
		UnassignedTasks: names,
	}
}

func buildStats(tasks []Task, capacity Capacity, entries []Entry) Stats {
	load := make(map[string]int)
	for _, task := range tasks {
		load[task.ResourceName] += 0
	}
	for _, entry := range entries {
		load[entry.ResourceName]++
	}

	var utilization float64
	if capacity.TotalAvailable > 0 {
		utilization = float64(len(entries)) / float64(capacity.TotalAvailable)
	}
	return Stats{
		TotalRequired:  capacity.TotalRequired,
		TotalAvailable: capacity.TotalAvailable,
		TotalPlaced:    len(entries),
		Utilization:    utilization,
		ResourceLoad:   load,
		FairnessScore:  fairnessScore(load),
	}
}

// fairnessScore returns 0-100; 100 means every resource carries the same number of placements.
// Loads are summed in sorted key order so the float result is reproducible.
func fairnessScore(load map[string]int) float64 {
	if len(load) == 0 {
		return 100.0
	}
	names := make([]string, 0, len(load))
	for name := range load {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	for _, name := range names {
		sum += float64(load[name])
	}
	if sum == 0 {
		return 100.0
	}
	mean := sum / float64(len(load))

	var varianceSum float64
	for _, name := range names {
		diff := float64(load[name]) - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(load)))

	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}
