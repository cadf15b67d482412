package dashboard

// Stats is the flat record behind the dashboard tiles. Each count is an
// independent point-in-time query.
type Stats struct {
	TotalPatients     int `json:"totalPatients"`
	TodayAppointments int `json:"todayAppointments"`
	AvailableDoctors  int `json:"availableDoctors"`
	AvailableRooms    int `json:"availableRooms"`
}
