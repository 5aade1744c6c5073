// Package render turns field definitions into renderer-neutral controls and
// read-only views.
//
// Render produces one Control per field. A Control carries everything a
// concrete renderer (terminal prompts, previews) needs to draw the field, and
// Control.Set is the only way an edit flows back to the owner of the payload.
// Unknown field types produce a WidgetUnsupported control instead of being
// dropped.
package render
