// Package form holds the editable state of one IOM document during a create
// or edit session.
//
// An Engine seeds the data payload (template defaults and context overlays on
// create, the stored payload on edit), applies single-field edits, validates
// locally, and submits through the API. Failed submits keep every entered
// value; the flattened server message is exposed through FormError and sent
// to the notification sink.
package form
