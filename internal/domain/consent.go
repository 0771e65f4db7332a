package domain

// Consent response errors
const (
	ConsentDenied = "access_denied"
)

// ConsentResponse is what the consent page hands back to the authorize callback.
type ConsentResponse struct {
	// Error is set when the user refused, ScopesValuesConsented is then ignored
	Error                 string   `json:"error,omitempty"`
	ErrorDescription      string   `json:"error_description,omitempty"`
	ScopesValuesConsented []string `json:"scopes,omitempty"`
	RememberConsent       bool     `json:"remember,omitempty"`
}

// Granted reports whether the user consented to at least one scope
func (c *ConsentResponse) Granted() bool {
	return c != nil && c.Error == "" && len(c.ScopesValuesConsented) > 0
}
