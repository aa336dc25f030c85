package model

import "time"

// EmailStatus classifies the deliverability of a lead's email address.
type EmailStatus string

const (
	EmailStatusVerified   EmailStatus = "verified"
	EmailStatusInvalid    EmailStatus = "invalid"
	EmailStatusUnverified EmailStatus = "unverified"
	EmailStatusNotFound   EmailStatus = "not_found"
)

// NotFoundSentinel is stored in the email column when every enrichment
// provider came up empty. It is not a real address and must be filtered
// before any send.
const NotFoundSentinel = "not_found"

// Lead is the persisted business record produced by the place detail
// resolver and mutated by the enrichment waterfall.
type Lead struct {
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"external_id"`

	Name        string      `json:"name"`
	Website     string      `json:"website,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Email       string      `json:"email,omitempty"`
	EmailStatus EmailStatus `json:"email_status"`

	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
	Location string `json:"location,omitempty"` // "lat, lng"

	BusinessType string `json:"business_type"`

	CreatedBy      string `json:"created_by,omitempty"`
	RecordOwner    string `json:"record_owner,omitempty"`
	Currency       string `json:"currency,omitempty"`
	Source         string `json:"source,omitempty"`
	Campaign       string `json:"campaign,omitempty"`
	CampaignStatus string `json:"campaign_status,omitempty"`
	UploadStatus   string `json:"upload_status,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
}

// HasEmail reports whether the lead already carries a usable address,
// in which case enrichment is skipped entirely.
func (l Lead) HasEmail() bool {
	return l.Email != "" && l.Email != NotFoundSentinel && l.Email != "Not Found"
}
