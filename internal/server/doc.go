// Package server provides the HTTP validation service.
//
// Peers of a CMP client (or an RA in front of one) post DER encoded PKIMessages to
//
//	POST /v1/profiles/{profile}/validate
//
// and receive either a ValidationResponse (200) or a DCSA style error response carrying the
// validation code of the rejection (422). Messages are grouped into transactions by profile and
// transactionID so that later messages of a transaction reuse the sender certificate validated
// by earlier ones.
//
// The server is configured through environment variables (see internal/config/config.go) and a
// TOML file with the trust profiles (see internal/config/profiles.go).
//
// middleware is in internal/server/middleware, infrastructure handlers in internal/server/handlers.
package server
