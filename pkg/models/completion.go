package models

import (
	"crypto/sha256"
	"fmt"
)

// CompletionRequest is what is sent to the generation service. Its
// fingerprint is the result cache key.
type CompletionRequest struct {
	SystemInstruction string `json:"system_instruction"`
	Prompt            string `json:"prompt"`
	Model             string `json:"model"`
	TemplateVersion   string `json:"template_version"`
}

// Fingerprint is a hex SHA-256 over every field.
func (r CompletionRequest) Fingerprint() string {
	h := sha256.New()
	for _, part := range []string{r.TemplateVersion, r.Model, r.SystemInstruction, r.Prompt} {
		// length prefix keeps field boundaries unambiguous
		fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// ResultStatus tags a CompletionResult.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusEmpty   ResultStatus = "empty"
	StatusFailure ResultStatus = "failure"
)

// ErrorKind classifies a failed completion.
type ErrorKind string

const (
	ErrorNetwork       ErrorKind = "network"
	ErrorService       ErrorKind = "service"
	ErrorBudget        ErrorKind = "budget"
	ErrorCanceled      ErrorKind = "canceled"
	ErrorConfiguration ErrorKind = "configuration"
)

// CompletionResult is Success(text), Empty or Failure(kind, message).
// Values are never mutated after construction.
type CompletionResult struct {
	Status   ResultStatus `json:"status"`
	Text     string       `json:"text,omitempty"`
	Kind     ErrorKind    `json:"error_kind,omitempty"`
	Message  string       `json:"message,omitempty"`
	Provider string       `json:"provider,omitempty"`
	Model    string       `json:"model,omitempty"`
	Attempts int          `json:"attempts,omitempty"`
	Usage    *Usage       `json:"usage,omitempty"`
}

// Success builds a successful result.
func Success(text string) CompletionResult {
	return CompletionResult{Status: StatusSuccess, Text: text}
}

// Empty builds a result for a call that returned no content.
func Empty() CompletionResult {
	return CompletionResult{Status: StatusEmpty}
}

// Failure builds a failed result.
func Failure(kind ErrorKind, message string) CompletionResult {
	return CompletionResult{Status: StatusFailure, Kind: kind, Message: message}
}

func (r CompletionResult) IsSuccess() bool { return r.Status == StatusSuccess }
func (r CompletionResult) IsEmpty() bool   { return r.Status == StatusEmpty }
func (r CompletionResult) IsFailure() bool { return r.Status == StatusFailure }
