package scheduling

// Record is the appointment shape pushed to calendar clients. Field names are
// part of the wire contract.
type Record struct {
	AppointmentID    string `json:"appointmentId"`
	Status           Status `json:"status"`
	StartHour        string `json:"startHour"`
	EndHour          string `json:"endHour"`
	Date             string `json:"date"`
	PatientID        string `json:"patientId"`
	MedicID          string `json:"medicId"`
	PatientUser      string `json:"patientUser"`
	MedicUser        string `json:"medicUser"`
	InitialTreatment string `json:"initialTreatment"`
	Color            string `json:"color"`
}

// ViewQuery selects appointments for a calendar view. Empty dates mean the current week.
type ViewQuery struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	MedicID   string `json:"medicId,omitempty"`
}

// Contains reports whether rec belongs to the view.
func (q ViewQuery) Contains(rec Record) bool {
	if q.MedicID != "" && q.MedicID != rec.MedicID {
		return false
	}
	if q.StartDate != "" && rec.Date < q.StartDate {
		return false
	}
	if q.EndDate != "" && rec.Date > q.EndDate {
		return false
	}
	return true
}
