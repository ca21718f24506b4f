package webhook

// Submitter hands a payload to the worker.
type Submitter interface {
	Submit(payload any) (id string, accepted bool)
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig defines a single webhook endpoint.
type EndpointConfig struct {
	// Path is the URL path for this webhook (e.g., "/hooks/scanner")
	Path string

	// Secret is the HMAC secret for signature verification
	Secret string

	// SignatureHeader is the HTTP header carrying the signature
	SignatureHeader string

	// MaxBodySize is the maximum allowed request body size in bytes
	MaxBodySize int64
}

// SubmitResponse is the JSON response for webhook submissions.
type SubmitResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	DefaultMaxBodySize     = 1048576 // 1 MB
	DefaultSignatureHeader = "X-Hub-Signature-256"
)
