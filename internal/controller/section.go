package controller

// BuildSectionPlan distributes total turns across sections, leftover
// turns loaded into the earliest sections, per spec.md §4.5 "start
// semantics": per = total // sections, rem = total % sections, the
// first rem entries get per+1, the rest get per. Sum of the plan always
// equals total.
func BuildSectionPlan(total, sections int) []int {
	per := total / sections
	rem := total % sections
	plan := make([]int, sections)
	for i := range plan {
		plan[i] = per
		if i < rem {
			plan[i]++
		}
	}
	return plan
}
