// Package redact removes sensitive material from strings before they are
// logged. Presigned URLs embed signatures and access key ids in their query
// string, and collaborator errors can echo connection strings, so raw errors
// are never logged without passing through here.
package redact

import "regexp"

const (
	redactedCredential = "[REDACTED_CREDENTIAL]"
	redactedKey        = "[REDACTED_KEY]"
)

var (
	// Presigned URL query parameters carrying signature material.
	presignParamRegex = regexp.MustCompile(
		`(?i)(X-Amz-(?:Signature|Credential|Security-Token))=[^&\s'"]+`,
	)

	// Access key ids and secret key material.
	awsKeyRegex = regexp.MustCompile(`(AKIA|ASIA|AccessKey(Id)?)([^a-zA-Z0-9])?[A-Z0-9]{8,}`)

	// Database connection strings with inline credentials.
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@`)

	// Generic key/token assignments in error text.
	secretAssignRegex = regexp.MustCompile(
		`(?i)(secret|token|password|access_key|secret_key)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)
)

// String redacts sensitive material from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	out := presignParamRegex.ReplaceAllString(input, "$1="+redactedKey)
	out = awsKeyRegex.ReplaceAllString(out, redactedKey)
	out = dbConnRegex.ReplaceAllString(out, "$1://"+redactedCredential+"@")
	out = secretAssignRegex.ReplaceAllString(out, "$1$2"+redactedCredential)
	return out
}

// Error redacts the error's message. Returns the empty string for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
