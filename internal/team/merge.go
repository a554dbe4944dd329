package team

// Merge overlays a scan onto an existing record. A field is overwritten only
// when the scan carries a non-empty value for it. Recent form is replaced as
// a whole. Venue and key players are never touched.
func Merge(existing Record, scanned ScanResult) Record {
	out := existing.clone()

	if scanned.TeamName != nil && *scanned.TeamName != "" {
		out.Name = *scanned.TeamName
	}
	if scanned.Formation != nil && *scanned.Formation != "" {
		out.Formation = *scanned.Formation
	}
	if scanned.AverageRating != nil && *scanned.AverageRating != 0 {
		out.AverageRating = *scanned.AverageRating
	}
	if len(scanned.RecentForm) > 0 {
		out.RecentForm = append([]Outcome(nil), scanned.RecentForm...)
	}

	return out
}
