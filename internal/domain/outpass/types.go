package outpass

// Package outpass holds the data contracts consumed from the remote outpass
// management API. The portal does not own these records; it only displays
// aggregates on the role dashboards.

// Stats is the dashboard statistics object. Counts default to zero when the
// upstream API is unreachable.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
}

// Record is a single outpass entry as listed on dashboards. Upstream field
// naming varies between API versions (leaveStartDate vs fromDate); the
// gateway normalizes to this shape.
type Record struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Destination       string `json:"destination"`
	Reason            string `json:"reason"`
	FromDate          string `json:"from_date"`
	ToDate            string `json:"to_date"`
	StudentRollNumber string `json:"student_roll_number"`
	HostelName        string `json:"hostel_name"`
}
