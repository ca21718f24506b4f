// Package webhook accepts convhost messages from services that sign their
// requests with a shared secret instead of holding a bearer token.
//
// Each endpoint verifies an HMAC-SHA256 signature over the raw body
// ("sha256=<hex>" or plain hex) before the body, decoded as JSON, is
// submitted as a message payload:
//
//	webhooks:
//	  listen: "127.0.0.1:8081"
//	  endpoints:
//	    - path: /hooks/scanner
//	      secret: ${SCANNER_WEBHOOK_SECRET}
//	      signature_header: X-Hub-Signature-256
//	      max_body_size: 64KB
//
// Responses: 202 accepted, 503 dropped (queue full), 400 invalid JSON,
// 403 bad or missing signature (no details), 413 body too large.
package webhook
