package domain

// TracerClickEvent is one redirect request against a tracer link. Rows are
// append-only; nothing in the system ever updates or deletes them.
//
// ClickedAt is stored as unix seconds and DayBucket is denormalized from it at
// insert time, so the daily time series is a plain GROUP BY. IPHash carries a
// hash of the coarsened /24 (or /64) prefix and never of the raw address.
type TracerClickEvent struct {
	ID                    string  `gorm:"primaryKey;column:id;size:36" json:"id"`
	TracerLinkID          string  `gorm:"column:tracer_link_id;size:36;not null;index" json:"tracerLinkId"`
	ClickedAt             int64   `gorm:"column:clicked_at;not null;index" json:"clickedAt"`
	DayBucket             string  `gorm:"column:day_bucket;size:10;not null;index" json:"dayBucket"`
	RequestID             *string `gorm:"column:request_id;size:64" json:"requestId,omitempty"`
	IsLikelyBot           bool    `gorm:"column:is_likely_bot;not null" json:"isLikelyBot"`
	DeviceType            string  `gorm:"column:device_type;size:16;not null" json:"deviceType"`
	UAFamily              string  `gorm:"column:ua_family;size:16;not null" json:"uaFamily"`
	OSFamily              string  `gorm:"column:os_family;size:16;not null" json:"osFamily"`
	ReferrerHost          *string `gorm:"column:referrer_host;size:255" json:"referrerHost,omitempty"`
	IPHash                *string `gorm:"column:ip_hash;size:64" json:"-"`
	UniqueFingerprintHash *string `gorm:"column:unique_fingerprint_hash;size:64;index" json:"-"`

	// Relationships
	Link *TracerLink `gorm:"foreignKey:TracerLinkID" json:"link,omitempty"`
}

// TableName returns the table name for GORM
func (TracerClickEvent) TableName() string {
	return "tracer_click_events"
}
