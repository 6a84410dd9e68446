package models

// ReassignSignal asks the caller to hand an overdue issue to another Sentinel.
type ReassignSignal struct {
	Issue          string `json:"issue"`
	PreviousHolder string `json:"previous_holder"`
}

// HealthReport is the run-level output of one health check.
type HealthReport struct {
	RunID        string           `json:"run_id"`
	Freed        int              `json:"freed"`
	Reassigned   int              `json:"reassigned"`
	Escalated    int              `json:"escalated"`
	Warned       int              `json:"warned"`
	Overridden   int              `json:"overridden"`
	Skipped      int              `json:"skipped"`
	TotalChecked int              `json:"total_checked"`
	Committed    bool             `json:"committed"`
	Reassign     []ReassignSignal `json:"reassign"`
}

// Changed reports whether the run mutated any record.
func (r *HealthReport) Changed() bool {
	return r.Freed > 0 || r.Reassigned > 0 || r.Overridden > 0
}

// Merge adds the counts and signals of part, a single contributor's share
// of a run.
func (r *HealthReport) Merge(part *HealthReport) {
	r.Freed += part.Freed
	r.Reassigned += part.Reassigned
	r.Escalated += part.Escalated
	r.Warned += part.Warned
	r.Overridden += part.Overridden
	r.Skipped += part.Skipped
	r.TotalChecked += part.TotalChecked
	r.Reassign = append(r.Reassign, part.Reassign...)
}

// Discard turns every change in r into a skip. Sent reminders stay counted.
func (r *HealthReport) Discard() {
	r.Skipped += r.Freed + r.Reassigned + r.Overridden
	r.Freed, r.Reassigned, r.Overridden = 0, 0, 0
	r.Reassign = nil
}
