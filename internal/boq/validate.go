package boq

// Validate flags rows without identity or description. Each rule is checked
// independently, so one row can yield two records.
func Validate(rows []Row) []ExceptionRecord {
	var out []ExceptionRecord
	for _, r := range rows {
		if r.ItemCode == "" && r.BlockName == "" {
			out = append(out, ExceptionRecord{Row: r, Issue: IssueMissingIdentity})
		}
		if r.Description == "" {
			out = append(out, ExceptionRecord{Row: r, Issue: IssueMissingDescription})
		}
	}
	return out
}
