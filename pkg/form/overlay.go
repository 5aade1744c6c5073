package form

import "github.com/goliatone/go-iom/pkg/model"

// Conventional field names filled from context on create when the template
// declares them.
var (
	parentDisplayFields = []string{"related_record", "related_record_name", "parent_record"}
	requesterFields     = []string{"requester", "requested_by", "employee"}
	requesterNameFields = []string{"requester_name", "employee_name", "full_name"}
	requesterMailFields = []string{"requester_email", "email"}
	departmentFields    = []string{"department"}
	departmentNameField = "department_name"
)

func (e *Engine) applyOverlays() {
	if e.parent != nil && e.parent.Display != "" {
		for _, name := range parentDisplayFields {
			e.overlay(name, e.parent.Display, nil)
		}
	}
	if e.user == nil {
		return
	}
	u := e.user
	for _, name := range requesterFields {
		e.overlay(name, u.FullName(), u.ID)
	}
	for _, name := range requesterNameFields {
		e.overlay(name, u.FullName(), nil)
	}
	if u.Email != "" {
		for _, name := range requesterMailFields {
			e.overlay(name, u.Email, nil)
		}
	}
	var deptID any
	if u.Department != nil {
		deptID = *u.Department
	}
	if deptID != nil || u.DepartmentName != "" {
		for _, name := range departmentFields {
			e.overlay(name, u.DepartmentName, deptID)
		}
	}
	if u.DepartmentName != "" {
		e.overlay(departmentNameField, u.DepartmentName, nil)
	}
}

// overlay sets a conventional field when present: selector fields take id,
// text fields take text. Other types are left alone.
func (e *Engine) overlay(name, text string, id any) {
	field, ok := e.tpl.Field(name)
	if !ok {
		return
	}
	switch {
	case field.Type.IsSelector():
		if id == nil {
			return
		}
		if field.Type.IsMultiple() {
			e.payload[name] = []any{id}
			return
		}
		e.payload[name] = id
	case field.Type == model.FieldTextShort || field.Type == model.FieldTextArea:
		if text == "" {
			return
		}
		e.payload[name] = text
	}
}
