package domain

import (
	"context"
)

// AIExtractionRequest is the contract sent to the external extraction service.
type AIExtractionRequest struct {
	DeidentifiedText    string               `json:"deidentifiedText"`
	UserProvidedContext *UserProvidedContext `json:"userProvidedContext,omitempty"`
}

// UserProvidedContext carries caller-supplied hints to the extraction service.
type UserProvidedContext struct {
	Age   *int     `json:"age,omitempty"`
	BMI   *float64 `json:"bmi,omitempty"`
	Notes string   `json:"notes,omitempty"`
}

// ResponseValidator checks an extraction payload against the caller's schema.
type ResponseValidator func(payload []byte) error

// AIExtractionClient calls the external structured-extraction service. Only
// payloads accepted by validate are returned or cached; a rejection is
// returned as an error wrapping the validator's.
type AIExtractionClient interface {
	Extract(ctx context.Context, req AIExtractionRequest, validate ResponseValidator) (payload []byte, cached bool, err error)
}

// DocumentType is the declared type of an uploaded document.
type DocumentType string

const (
	DOCUMENT_PDF  DocumentType = "pdf"
	DOCUMENT_DOCX DocumentType = "docx"
	DOCUMENT_TXT  DocumentType = "txt"
)

// IsValid reports whether the document type is supported.
func (d DocumentType) IsValid() bool {
	return d == DOCUMENT_PDF || d == DOCUMENT_DOCX || d == DOCUMENT_TXT
}

// DocumentText is the document-to-text collaborator's response.
type DocumentText struct {
	Text    string `json:"text"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DocumentConverter turns document bytes into plain text.
type DocumentConverter interface {
	Convert(ctx context.Context, filename string, docType DocumentType, content []byte) (*DocumentText, error)
}

// CandidateAssessor runs the full assessment pipeline.
type CandidateAssessor interface {
	Assess(ctx context.Context, text string, explicit *ExplicitFields) (*AssessmentResult, error)
	ScoreRecord(ctx context.Context, record CandidateRecord) (*RecordAssessment, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	Validate() error
	IsAIEnabled() bool
}
