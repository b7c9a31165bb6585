package domain

import "time"

// TracerLink is one tracked outbound link, created the first time a tailored
// resume is rewritten for a job. The triple (job_id, source_path,
// destination_url_hash) is unique, so regenerating the same resume reuses the
// existing row and token.
type TracerLink struct {
	ID                 string    `gorm:"primaryKey;column:id;size:36" json:"id"`
	Token              string    `gorm:"column:token;size:128;not null;uniqueIndex" json:"token"`
	JobID              string    `gorm:"column:job_id;size:255;not null;index;uniqueIndex:ux_tracer_links_job_path_dest,priority:1" json:"jobId"`
	SourcePath         string    `gorm:"column:source_path;size:512;not null;uniqueIndex:ux_tracer_links_job_path_dest,priority:2" json:"sourcePath"`
	SourceLabel        string    `gorm:"column:source_label;size:200" json:"sourceLabel"`
	DestinationURL     string    `gorm:"column:destination_url;type:text;not null" json:"destinationUrl"`
	DestinationURLHash string    `gorm:"column:destination_url_hash;size:64;not null;uniqueIndex:ux_tracer_links_job_path_dest,priority:3" json:"-"`
	IsActive           bool      `gorm:"column:is_active;not null;default:true" json:"isActive"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for GORM
func (TracerLink) TableName() string {
	return "tracer_links"
}
