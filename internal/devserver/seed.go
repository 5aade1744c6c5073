package devserver

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/schema"
)

//go:embed seed/*.yaml
var seedFS embed.FS

func ptr(v int64) *int64 { return &v }

// Seed fills the store with demo users, lookups and the embedded templates.
func Seed(ctx context.Context, s *Store, logger *logrus.Entry) error {
	groups := []model.GroupRef{
		{ID: 1, Name: "Facilities"},
		{ID: 2, Name: "Finance"},
		{ID: 3, Name: "IT Support"},
	}
	for _, g := range groups {
		s.AddGroup(g)
	}

	s.AddUser(model.User{ID: 1, Username: "alice", FirstName: "Alice", LastName: "Reyes", Email: "alice@example.com",
		Groups: groups[0:1], Department: ptr(1), DepartmentName: "Operations"})
	s.AddUser(model.User{ID: 2, Username: "bob", FirstName: "Bob", LastName: "Chen", Email: "bob@example.com",
		Groups: groups[1:2], Department: ptr(2), DepartmentName: "Finance"})
	s.AddUser(model.User{ID: 3, Username: "carol", FirstName: "Carol", LastName: "Diaz", Email: "carol@example.com",
		IsStaff: true, Groups: groups[2:3], Department: ptr(3), DepartmentName: "IT"})
	s.AddUser(model.User{ID: 4, Username: "dave", FirstName: "Dave", LastName: "Okafor", Email: "dave@example.com",
		Groups: groups[1:2], Department: ptr(2), DepartmentName: "Finance"})

	s.AddLookup("departments",
		Record{"id": 1, "name": "Operations"},
		Record{"id": 2, "name": "Finance"},
		Record{"id": 3, "name": "IT"},
	)
	s.AddLookup("projects",
		Record{"id": 1, "name": "Office Move"},
		Record{"id": 2, "name": "ERP Rollout"},
	)
	s.AddLookup("assets",
		Record{"id": 1, "name": "Floor 2 Printer", "asset_tag": "PRN-0001", "category": "printer"},
		Record{"id": 2, "name": "Lobby Printer", "asset_tag": "PRN-0002", "category": "printer"},
		Record{"id": 3, "name": "Alice's Laptop", "asset_tag": "LAP-0042", "category": "laptop"},
	)

	s.AddContentType(ContentType{ID: 1, AppLabel: "iom", Model: "genericiom"})
	s.AddContentType(ContentType{ID: 2, AppLabel: "assets", Model: "asset"})
	s.AddContentType(ContentType{ID: 3, AppLabel: "projects", Model: "project"})

	rules := map[int64][]StepRule{
		4: {
			{Name: "Finance review", ApproverGroup: ptr(2)},
			{Name: "Director sign-off", Approver: ptr(3)},
		},
	}
	templates, err := LoadTemplates(ctx, seedFS, "seed", logger)
	if err != nil {
		return err
	}
	for _, tpl := range templates {
		s.AddTemplate(tpl, rules[tpl.ID]...)
	}
	return nil
}

// LoadTemplates parses every .yaml or .json template under dir in files.
// Validation issues are logged; templates with errors are skipped.
func LoadTemplates(ctx context.Context, files fs.FS, dir string, logger *logrus.Entry) ([]model.Template, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("devserver: read templates: %w", err)
	}
	loader := schema.NewLoader(schema.WithFS(files))

	var out []model.Template
	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml" && ext != ".json") {
			continue
		}
		name := path.Join(dir, entry.Name())
		tpl, err := loader.Load(ctx, schema.SourceFromFS(name))
		if err != nil {
			return nil, fmt.Errorf("devserver: load %s: %w", name, err)
		}
		result := schema.Validate(tpl)
		for _, issue := range result.Issues {
			logger.WithFields(logrus.Fields{"template": name, "severity": issue.Severity}).Warn(issue.String())
		}
		if !result.Valid {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
