package scheduler

import "sort"

type cell struct {
	day  int
	slot int
	site int
}

type placement struct {
	cell
	task int
}

// engine holds the occupancy state of a single run. It is never shared.
type engine struct {
	req Request

	resourceIdx  map[string]int
	resourceBusy [][][]bool // [resource][day][slot]
	siteBusy     [][][]bool // [site][day][slot]
	resourceLoad [][]int    // [resource][day]
	siteLoad     [][]int    // [site][day]

	placed []placement
}

func newEngine(req Request) *engine {
	days, slots := len(req.Days), len(req.TimeSlots)

	resourceIdx := make(map[string]int)
	for _, task := range req.Tasks {
		if _, ok := resourceIdx[task.ResourceName]; !ok {
			resourceIdx[task.ResourceName] = len(resourceIdx)
		}
	}

	return &engine{
		req:          req,
		resourceIdx:  resourceIdx,
		resourceBusy: newGrid(len(resourceIdx), days, slots),
		siteBusy:     newGrid(len(req.Sites), days, slots),
		resourceLoad: newCounters(len(resourceIdx), days),
		siteLoad:     newCounters(len(req.Sites), days),
	}
}

func newGrid(n, days, slots int) [][][]bool {
	grid := make([][][]bool, n)
	for i := range grid {
		grid[i] = make([][]bool, days)
		for d := range grid[i] {
			grid[i][d] = make([]bool, slots)
		}
	}
	return grid
}

func newCounters(n, days int) [][]int {
	counters := make([][]int, n)
	for i := range counters {
		counters[i] = make([]int, days)
	}
	return counters
}

// run places every task and returns achieved occurrences indexed like req.Tasks.
func (e *engine) run() []int {
	achieved := make([]int, len(e.req.Tasks))
	for _, t := range e.taskOrder() {
		task := e.req.Tasks[t]
		for achieved[t] < task.RequiredOccurrences {
			// occupancy only grows, so a miss means no later attempt for this task can succeed
			if !e.placeOne(t) {
				break
			}
			achieved[t]++
		}
	}
	return achieved
}

// taskOrder sorts by demand descending; ties keep input order.
func (e *engine) taskOrder() []int {
	order := make([]int, len(e.req.Tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return e.req.Tasks[order[i]].RequiredOccurrences > e.req.Tasks[order[j]].RequiredOccurrences
	})
	return order
}

func (e *engine) placeOne(t int) bool {
	res := e.resourceIdx[e.req.Tasks[t].ResourceName]
	for _, day := range e.dayOrder(res) {
		sites := e.siteOrder(day)
		for slot := range e.req.TimeSlots {
			if e.resourceBusy[res][day][slot] {
				continue
			}
			for _, site := range sites {
				if e.siteBusy[site][day][slot] {
					continue
				}
				e.accept(t, res, cell{day: day, slot: slot, site: site})
				return true
			}
		}
	}
	return false
}

func (e *engine) accept(t, res int, c cell) {
	e.resourceBusy[res][c.day][c.slot] = true
	e.siteBusy[c.site][c.day][c.slot] = true
	e.resourceLoad[res][c.day]++
	e.siteLoad[c.site][c.day]++
	e.placed = append(e.placed, placement{cell: c, task: t})
}

// dayOrder prefers the days where the resource is least loaded.
func (e *engine) dayOrder(res int) []int {
	order := make([]int, len(e.req.Days))
	for i := range order {
		order[i] = i
	}
	load := e.resourceLoad[res]
	sort.SliceStable(order, func(i, j int) bool {
		return load[order[i]] < load[order[j]]
	})
	return order
}

func (e *engine) siteOrder(day int) []int {
	order := make([]int, len(e.req.Sites))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return e.siteLoad[order[i]][day] < e.siteLoad[order[j]][day]
	})
	return order
}

// entries exports placements ordered by day, slot and site position.
func (e *engine) entries() []Entry {
	placed := make([]placement, len(e.placed))
	copy(placed, e.placed)
	sort.Slice(placed, func(i, j int) bool {
		a, b := placed[i], placed[j]
		if a.day != b.day {
			return a.day < b.day
		}
		if a.slot != b.slot {
			return a.slot < b.slot
		}
		return a.site < b.site
	})

	out := make([]Entry, 0, len(placed))
	for _, p := range placed {
		task := e.req.Tasks[p.task]
		out = append(out, Entry{
			Day:          e.req.Days[p.day],
			TimeSlot:     e.req.TimeSlots[p.slot],
			TaskID:       task.ID,
			SiteID:       e.req.Sites[p.site].ID,
			ResourceName: task.ResourceName,
		})
	}
	return out
}
