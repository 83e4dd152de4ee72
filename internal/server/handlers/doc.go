// Package handlers provides the infrastructure HTTP handlers of the validation service
// (health, readiness, version and metrics).
//
// The CMP validation endpoint itself lives in the server package because it needs the
// transaction store.
package handlers
