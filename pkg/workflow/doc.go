// Package workflow computes which lifecycle actions an actor may take on an
// IOM document and dispatches them.
//
// The legal-action table is evaluated client side only to decide which
// controls to offer; the server stays authoritative. A Session never mutates
// its document locally: after every successful action it refetches the
// document (and approval steps for advanced approval).
package workflow
