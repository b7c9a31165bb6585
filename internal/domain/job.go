package domain

import "time"

// Job is the slice of the job entity this subsystem reads. Jobs are owned by
// the application-tracking side; here they only gate link creation and provide
// display fields for the per-job analytics response.
type Job struct {
	ID                 string    `gorm:"primaryKey;column:id;size:255" json:"id"`
	Title              string    `gorm:"column:title;size:500" json:"title"`
	Employer           string    `gorm:"column:employer;size:500" json:"employer"`
	TracerLinksEnabled bool      `gorm:"column:tracer_links_enabled;not null;default:true" json:"tracerLinksEnabled"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for GORM
func (Job) TableName() string {
	return "jobs"
}
