package domain

// Appointment is a bookable counselling slot.
type Appointment struct {
	ID        string `json:"id"`
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`
	Price     int    `json:"price"` // JPY
	Booked    bool   `json:"booked"`
}
