package models

// Stats is the aggregate summary of a listing. Pending and Resolved partition
// Total; the other counters overlap freely.
type Stats struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	Resolved         int `json:"resolved"`
	WithConfirmation int `json:"withConfirmation"`
	WithExtraDocs    int `json:"withExtraDocs"`
}

// Summarize counts over exactly the given records.
func Summarize(apps []*Application) Stats {
	s := Stats{Total: len(apps)}
	for _, a := range apps {
		if a.ResolutionReceived {
			s.Resolved++
		} else {
			s.Pending++
		}
		if a.ConfirmationEmailReceived {
			s.WithConfirmation++
		}
		if a.AdditionalDocumentationRequested {
			s.WithExtraDocs++
		}
	}
	return s
}

// Listing is a filtered set of applications plus the summary over that set.
type Listing struct {
	Stats        Stats          `json:"stats"`
	Applications []*Application `json:"applications"`
}
