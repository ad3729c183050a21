package payload

import "fmt"

// Kind distinguishes the business action gated on a payment.
type Kind string

const (
	// KindJob posts a new job listing.
	KindJob Kind = "job"

	// KindExtend extends the expiry of an existing job listing.
	KindExtend Kind = "extend"

	// KindProject creates a funding project.
	KindProject Kind = "project"

	// KindFunding contributes to a project's funding.
	KindFunding Kind = "funding"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindJob, KindExtend, KindProject, KindFunding}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown operation kind %q: must be one of %v", s, Kinds)
}

// Payload is the sealed set of business payloads.
// Implemented by JobPosting, JobExtension, Project and Contribution.
type Payload interface {
	Kind() Kind
	isPayload()
}

// JobPosting is the data for a new job listing.
type JobPosting struct {
	Title       string `json:"title" yaml:"title"`
	Company     string `json:"company" yaml:"company"`
	Description string `json:"description" yaml:"description"`
	Location    string `json:"location,omitempty" yaml:"location,omitempty"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	ApplyURL    string `json:"apply_url" yaml:"apply_url"`
	ListingDays int    `json:"listing_days" yaml:"listing_days"`
}

// JobExtension pushes a listing's expiry forward.
type JobExtension struct {
	JobID string `json:"job_id" yaml:"job_id"`
	Days  int    `json:"days" yaml:"days"`
}

// Project is a crowdfunding campaign.
// GoalAmount is in the smallest unit of Currency.
type Project struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	GoalAmount  int64  `json:"goal_amount" yaml:"goal_amount"`
	Currency    string `json:"currency" yaml:"currency"`
	FundingDays int    `json:"funding_days" yaml:"funding_days"`
}

// Contribution funds an existing project.
// Amount is in the smallest unit of Currency.
type Contribution struct {
	ProjectID string `json:"project_id" yaml:"project_id"`
	Amount    int64  `json:"amount" yaml:"amount"`
	Currency  string `json:"currency" yaml:"currency"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

func (JobPosting) Kind() Kind   { return KindJob }
func (JobExtension) Kind() Kind { return KindExtend }
func (Project) Kind() Kind      { return KindProject }
func (Contribution) Kind() Kind { return KindFunding }

func (JobPosting) isPayload()   {}
func (JobExtension) isPayload() {}
func (Project) isPayload()      {}
func (Contribution) isPayload() {}
