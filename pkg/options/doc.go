// Package options resolves candidate options for selector fields against the
// remote list endpoints (users, assets, departments, projects, groups).
//
// Responses may be a bare JSON array or the standard paged envelope
// {count, next, previous, results}; both normalize to a list of Items. Fetch
// failures never reach the caller: they are logged and the option list is
// cleared so the control stays usable. Search input is debounced and results
// of superseded searches are discarded.
package options
