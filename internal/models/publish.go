package models

import "time"

// PublishedVersion is one immutable archived schedule. Payload holds the full
// ScheduleData JSON as stored in Postgres.
type PublishedVersion struct {
	ID          string    `db:"id" json:"id"`
	Day         string    `db:"day" json:"day"`
	Mode        string    `db:"mode" json:"mode"`
	Payload     []byte    `db:"payload" json:"-"`
	TotalBuses  int       `db:"total_buses" json:"total_buses"`
	TotalRoutes int       `db:"total_routes" json:"total_routes"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
}
