package client

import (
	"strings"

	"github.com/Gee2424/HubFreelance-sub001/internal/data"
	"github.com/Gee2424/HubFreelance-sub001/internal/normalize"
)

// JobFilter narrows an already fetched job list. Zero fields match
// everything.
type JobFilter struct {
	Status   data.JobStatus
	Category string
	// Skills must all be present on a job, compared case-insensitively.
	Skills []string
	// Query matches title or description, case-insensitively.
	Query     string
	MinBudget float64
	MaxBudget float64
}

// FilterJobs returns the jobs matching f in their original order.
func FilterJobs(jobs []data.Job, f JobFilter) []data.Job {
	want := normalize.Skills(f.Skills)
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]data.Job, 0, len(jobs))
	for _, j := range jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Category != "" && !strings.EqualFold(j.Category, f.Category) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(j.Title), query) &&
			!strings.Contains(strings.ToLower(j.Description), query) {
			continue
		}
		if !hasSkills(j.Skills, want) {
			continue
		}
		if !inBudget(j, f.MinBudget, f.MaxBudget) {
			continue
		}
		out = append(out, j)
	}
	return out
}

func hasSkills(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	set := make(map[string]bool, len(have))
	for _, s := range normalize.Skills(have) {
		set[s] = true
	}
	for _, s := range want {
		if !set[s] {
			return false
		}
	}
	return true
}

// inBudget compares against the fixed budget, falling back to the hourly
// rate. Jobs with neither pass only when no bound is set.
func inBudget(j data.Job, min, max float64) bool {
	if min <= 0 && max <= 0 {
		return true
	}
	var amount float64
	switch {
	case j.Budget != nil:
		amount = *j.Budget
	case j.HourlyRate != nil:
		amount = *j.HourlyRate
	default:
		return false
	}
	if min > 0 && amount < min {
		return false
	}
	if max > 0 && amount > max {
		return false
	}
	return true
}
