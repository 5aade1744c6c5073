package model

import "strings"

// GroupRef is a group membership entry.
type GroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the acting user profile as returned by the API.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	Email          string     `json:"email,omitempty"`
	IsStaff        bool       `json:"is_staff"`
	Groups         []GroupRef `json:"groups,omitempty"`
	Department     *int64     `json:"department,omitempty"`
	DepartmentName string     `json:"department_name,omitempty"`
}

// FullName returns "First Last", falling back to the username.
func (u User) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}

// GroupIDs returns the identifiers of the user's groups. Membership checks use
// identifiers only; group names are display data.
func (u User) GroupIDs() []int64 {
	if len(u.Groups) == 0 {
		return nil
	}
	out := make([]int64, 0, len(u.Groups))
	for _, g := range u.Groups {
		out = append(out, g.ID)
	}
	return out
}

// InGroup reports whether the user belongs to the group with the given id.
func (u User) InGroup(id int64) bool {
	for _, g := range u.Groups {
		if g.ID == id {
			return true
		}
	}
	return false
}
