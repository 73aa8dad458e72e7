package model

import "time"

// ExtractedData is the snapshot of fields read from a claim document.
// Absent scalar fields are empty strings. Charges are positional: Charges[i]
// is the amount billed for CPTCodes[i].
type ExtractedData struct {
	Payer          string    `json:"payer,omitempty" yaml:"payer,omitempty"`
	PatientName    string    `json:"patient_name,omitempty" yaml:"patient_name,omitempty"`
	PatientID      string    `json:"patient_id,omitempty" yaml:"patient_id,omitempty"`
	CPTCodes       []string  `json:"cpt_codes" yaml:"cpt_codes"`
	Modifiers      []string  `json:"modifiers" yaml:"modifiers"`
	Charges        []float64 `json:"charges" yaml:"charges"`
	ServiceDates   []string  `json:"dates" yaml:"dates"` // Raw as extracted; may not be valid calendar dates
	ProviderName   string    `json:"provider_name,omitempty" yaml:"provider_name,omitempty"`
	ProviderNPI    string    `json:"provider_npi,omitempty" yaml:"provider_npi,omitempty"`
	DiagnosisCodes []string  `json:"diagnosis_codes" yaml:"diagnosis_codes"`
	RawText        string    `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
}

// Clone returns a deep copy so callers can never share backing arrays with a claim
func (d ExtractedData) Clone() ExtractedData {
	c := d
	c.CPTCodes = append([]string(nil), d.CPTCodes...)
	c.Modifiers = append([]string(nil), d.Modifiers...)
	c.Charges = append([]float64(nil), d.Charges...)
	c.ServiceDates = append([]string(nil), d.ServiceDates...)
	c.DiagnosisCodes = append([]string(nil), d.DiagnosisCodes...)
	return c
}

// TotalCharges sums every charge on the claim
func (d ExtractedData) TotalCharges() float64 {
	var total float64
	for _, c := range d.Charges {
		total += c
	}
	return total
}

// ClaimStatus is the lifecycle state of a claim
type ClaimStatus string

const (
	StatusUploaded    ClaimStatus = "Uploaded"
	StatusProcessing  ClaimStatus = "Processing"
	StatusProcessed   ClaimStatus = "Processed"
	StatusUnderReview ClaimStatus = "UnderReview"
	StatusApproved    ClaimStatus = "Approved"
	StatusRejected    ClaimStatus = "Rejected"
	StatusSubmitted   ClaimStatus = "Submitted"
	StatusPaid        ClaimStatus = "Paid"
)

// statusTransitions lists the forward moves allowed from each status
var statusTransitions = map[ClaimStatus][]ClaimStatus{
	StatusUploaded:    {StatusProcessing, StatusProcessed},
	StatusProcessing:  {StatusProcessed},
	StatusProcessed:   {StatusUnderReview, StatusApproved, StatusRejected},
	StatusUnderReview: {StatusApproved, StatusRejected},
	StatusApproved:    {StatusSubmitted},
	StatusRejected:    {StatusUnderReview},
	StatusSubmitted:   {StatusPaid},
	StatusPaid:        {},
}

// Valid reports whether s is a known status
func (s ClaimStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether a claim in status s may move to next
func (s ClaimStatus) CanTransition(next ClaimStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Claim is the unit of work: one uploaded document and everything derived from it
type Claim struct {
	ID        string        `json:"id"`
	Filename  string        `json:"filename"`
	Status    ClaimStatus   `json:"status"`
	Data      ExtractedData `json:"extracted_data"`
	Findings  []Finding     `json:"validation_results"`
	Queue     Queue         `json:"queue"`
	Override  *Override     `json:"override,omitempty"` // Set only by a manual approval
	Comments  []Comment     `json:"comments,omitempty"`
	Events    []Event       `json:"events,omitempty"`
	Note      *ReviewerNote `json:"reviewer_note,omitempty"` // Optional, never affects routing
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Override records an explicit queue decision that no longer follows the findings
type Override struct {
	Queue  Queue     `json:"queue"`
	Actor  string    `json:"actor"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Comment is free-text reviewer commentary
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// EventKind classifies an audit event
type EventKind string

const (
	EventRevalidate    EventKind = "revalidate"
	EventManualApprove EventKind = "manual_approve"
	EventReject        EventKind = "reject"
	EventStatusChange  EventKind = "status_change"
	EventEdit          EventKind = "edit"
)

// Event is one entry of a claim's audit trail
type Event struct {
	Kind     EventKind   `json:"kind"`
	Actor    string      `json:"actor,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Queue    Queue       `json:"queue"`
	Status   ClaimStatus `json:"status"`
	Findings int         `json:"findings"`
	At       time.Time   `json:"at"`
}
