// Package api defines the wire types of the validation service and the helpers the HTTP
// handlers use to send them.
//
// Errors follow the DCSA standard error response format: a top level description of the HTTP
// status and a list of detailed errors with numeric platform codes (7000-7999 technical,
// 8000-8999 functional).
package api
