// Package client talks to the ITSM REST API: templates, IOM documents,
// workflow actions, approval steps and the option list endpoints.
//
// Every request carries the bearer token and an X-Request-ID correlation id.
// Non-2xx responses become *APIError values carrying the decoded field errors;
// network failures wrap ErrTransport.
package client
