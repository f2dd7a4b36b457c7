package letters

import "time"

type LetterRequest struct {
	ID               string            `json:"id"`
	EmployeeID       string            `json:"employeeId"`
	EmployeeName     string            `json:"employeeName"`
	LetterType       string            `json:"letterType"`
	Details          map[string]string `json:"details"`
	EmployeeComments string            `json:"employeeComments"`
	AdminNotes       string            `json:"adminNotes"`
	Status           Status            `json:"status"`
	RequestDate      time.Time         `json:"requestDate"`
	ProcessedDate    *time.Time        `json:"processedDate,omitempty"`
	ProcessedBy      *string           `json:"processedBy,omitempty"`

	GeneratedLetterPath     *string    `json:"generatedLetterPath,omitempty"`
	GeneratedLetterFilename *string    `json:"generatedLetterFilename,omitempty"`
	LetterGeneratedDate     *time.Time `json:"letterGeneratedDate,omitempty"`

	EnvelopeID         *string    `json:"envelopeId,omitempty"`
	EnvelopeStatus     *string    `json:"envelopeStatus,omitempty"`
	SigningURL         *string    `json:"signingUrl,omitempty"`
	SentForSigningDate *time.Time `json:"sentForSigningDate,omitempty"`
	CompletedDate      *time.Time `json:"completedDate,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Filter struct {
	Status     string
	EmployeeID string
	LetterType string
}

type SubmitInput struct {
	LetterType       string            `json:"letterType"`
	Details          map[string]string `json:"details"`
	EmployeeComments string            `json:"employeeComments"`
}

type DecisionInput struct {
	Decision   string `json:"decision"`
	AdminNotes string `json:"adminNotes"`
	AdminEmail string `json:"adminEmail"`
	ReturnURL  string `json:"returnUrl"`
}
