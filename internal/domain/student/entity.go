package student

// Summary is one entry of the student directory.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Detail is a single student's record as returned by the student service.
// Fee amounts are kept as text exactly as the service sent them.
type Detail struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	TotalFees     string `json:"totalFees"`
	RemainingFees string `json:"remainingFees"`
}

// HasID reports whether id can be used to request a detail record.
// Only the empty identifier is withheld; anything else is opaque and is
// passed to the service as is.
func HasID(id string) bool {
	return id != ""
}

// Directory lists an entire student roster in a single snapshot.
type Directory []Summary
