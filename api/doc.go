// Package api documents the soundsortd HTTP API.
//
// # API Overview
//
// soundsortd exposes one classification route and the usual probes:
//   - POST / and POST /api/v1/classify: classify one feature matrix
//   - GET /health, /healthz: liveness
//   - GET /ready, /readyz: scheduler state and queue statistics
//   - GET /version: build information
//   - GET /metrics on the metrics port: Prometheus exposition
//
// # Request
//
// The request body is a safetensors bundle holding one float32 tensor named
// "fbank" with shape [frames, 128]. Longer inputs are truncated to 1024
// frames and shorter ones are zero padded.
//
// # Response
//
// On success the body is a JSON string literal:
//
//	"Speech" | "Music" | "Noise"
//
// Errors use the envelope
//
//	{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "..."}, "timestamp": "..."}
//
// with 400 for malformed input, 413 for oversized bodies, 429 when rate
// limited, 500 for batch or inference failures and 503 while the service
// is shutting down or out of admission permits.
//
// # Authentication
//
// When server.api_keys is set, every route except the probes requires
//
//	X-API-Key: your-api-key
package api
