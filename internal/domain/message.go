package domain

// EmailMessage is a fully-resolved message ready for a provider backend.
// By the time a message reaches this struct all template substitution is
// done; Text may still be empty, in which case the gateway derives a
// plaintext fallback from HTML.
type EmailMessage struct {
	To        []string `json:"to"`
	FromName  string   `json:"fromName"`
	FromEmail string   `json:"fromEmail"`
	Subject   string   `json:"subject"`
	HTML      string   `json:"html"`
	Text      string   `json:"text,omitempty"`
}
