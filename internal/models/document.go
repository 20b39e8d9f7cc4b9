// internal/models/document.go
package models

import "time"

type DocumentCategory string

const (
	CategoryIdentity  DocumentCategory = "identity"
	CategoryIncome    DocumentCategory = "income"
	CategoryFinancial DocumentCategory = "financial"
	CategoryProperty  DocumentCategory = "property"
	CategoryBusiness  DocumentCategory = "business"
	CategoryPartner   DocumentCategory = "partner"
	CategoryOther     DocumentCategory = "other"
)

type Applicability string

const (
	ApplicablePrimary  Applicability = "primary"
	ApplicablePartner  Applicability = "partner"
	ApplicableBusiness Applicability = "business"
	ApplicableAll      Applicability = "all"
)

// ConditionalDisplay shows a document only when the named flag has Value.
type ConditionalDisplay struct {
	Field string `json:"field"`
	Value bool   `json:"value"`
}

type DocumentDefinition struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	Required           bool                `json:"required"`
	Category           DocumentCategory    `json:"category"`
	MultipleAllowed    bool                `json:"multipleAllowed"`
	ApplicableFor      Applicability       `json:"applicableFor"`
	ConditionalDisplay *ConditionalDisplay `json:"conditionalDisplay,omitempty"`
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

func (v VerificationStatus) Valid() bool {
	return v == VerificationPending || v == VerificationVerified || v == VerificationRejected
}

type UploadedFile struct {
	ID                 string             `json:"id"`
	DocumentID         string             `json:"documentId"`
	Name               string             `json:"name"`
	Size               int64              `json:"size"`
	ContentType        string             `json:"contentType"`
	UploadedAt         time.Time          `json:"uploadedAt"`
	URL                string             `json:"url"`
	StorageKey         string             `json:"storageKey,omitempty"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	SignatureRequired  bool               `json:"signatureRequired"`
}

type DocumentStatus string

const (
	DocumentNotStarted DocumentStatus = "not_started"
	DocumentUploaded   DocumentStatus = "uploaded"
	DocumentVerified   DocumentStatus = "verified"
	DocumentRejected   DocumentStatus = "rejected"
)

// Document is a catalog entry merged with the files uploaded against it.
type Document struct {
	DocumentDefinition
	UploadedFiles []UploadedFile `json:"uploadedFiles"`
	Status        DocumentStatus `json:"status"`
}

// DeriveStatus computes the document status from its files: none uploaded is
// not_started, any rejected file is rejected, all verified is verified.
func DeriveStatus(files []UploadedFile) DocumentStatus {
	if len(files) == 0 {
		return DocumentNotStarted
	}
	verified := 0
	for _, f := range files {
		switch f.VerificationStatus {
		case VerificationRejected:
			return DocumentRejected
		case VerificationVerified:
			verified++
		}
	}
	if verified == len(files) {
		return DocumentVerified
	}
	return DocumentUploaded
}
