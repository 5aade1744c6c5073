// Package model defines the typed IOM vocabulary shared by the form engine,
// the renderers and the workflow session: field definitions and their closed
// type enumeration, templates (schemas) with their approval configuration,
// document instances, approval steps and the acting user.
//
// Field values inside a data payload are kept as decoded JSON (`any`), typed
// per the field definition: strings for text and date fields, float64 (or nil)
// for numbers, bool for booleans, scalars or []any for choice and selector
// fields. Identifiers are compared through IDString so that 3, 3.0 and "3"
// refer to the same record.
package model
