// Package devserver is an in-memory stand-in for the ITSM IOM REST API. It
// serves the template, document, workflow, approval step and lookup endpoints
// the client consumes, enforcing the same legal-action table.
package devserver

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/workflow"
)

// DefaultPageSize is used when a list request has no page_size.
const DefaultPageSize = 25

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSecret sets the token signing secret.
func WithSecret(secret string) Option {
	return func(s *Server) {
		if secret != "" {
			s.secret = []byte(secret)
		}
	}
}

// WithTokenTTL sets the lifetime of tokens issued by POST /token.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithPrefix mounts the API under prefix (default "/api").
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = "/" + strings.Trim(prefix, "/")
	}
}

// Server serves the fake API.
type Server struct {
	store  *Store
	logger *logrus.Entry
	secret []byte
	ttl    time.Duration
	prefix string
	engine *gin.Engine
}

// New builds the server and its routes.
func New(store *Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: logging.Discard(),
		secret: []byte("iom-dev-secret"),
		ttl:    12 * time.Hour,
		prefix: "/api",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Token issues a bearer token for the user with id.
func (s *Server) Token(id int64) (string, error) {
	user, ok := s.store.User(id)
	if !ok {
		return "", ErrNotFound
	}
	return IssueToken(s.secret, user, s.ttl)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group(s.prefix)
	api.POST("/token", s.issueToken)

	authed := api.Group("")
	authed.Use(s.requireAuth)
	{
		authed.GET("/templates", s.listTemplates)
		authed.GET("/templates/:id", s.getTemplate)

		authed.GET("/ioms", s.listIOMs)
		authed.POST("/ioms", s.createIOM)
		authed.GET("/ioms/:id", s.getIOM)
		authed.PATCH("/ioms/:id", s.updateIOM)
		authed.POST("/ioms/:id/:action", s.actIOM)

		authed.GET("/approval-steps", s.listSteps)
		authed.POST("/approval-steps/:id/:decision", s.decideStep)

		authed.GET("/users", s.listUsers)
		authed.GET("/users/me", s.me)
		authed.GET("/groups", s.listGroups)
		authed.GET("/departments", s.listLookup("departments"))
		authed.GET("/projects", s.listLookup("projects"))
		authed.GET("/assets", s.listLookup("assets"))
		authed.GET("/content-types", s.listContentTypes)
	}
	return r
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	c.Next()

	entry := s.logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"status":     c.Writer.Status(),
		"duration":   time.Since(start).String(),
		"request_id": requestID,
	})
	if c.Writer.Status() >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Debug("request served")
}

func (s *Server) fail(c *gin.Context, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, verr.Fields)
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	case errors.Is(err, ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": strings.TrimPrefix(err.Error(), ErrForbidden.Error()+": ")})
	default:
		s.logger.WithError(err).Error("unexpected failure")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error."})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func (s *Server) issueToken(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"username": []string{"This field is required."}})
		return
	}
	for _, u := range s.store.Users() {
		if strings.EqualFold(u.Username, strings.TrimSpace(req.Username)) {
			token, err := IssueToken(s.secret, u, s.ttl)
			if err != nil {
				s.fail(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
			return
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown user."})
}

func (s *Server) listTemplates(c *gin.Context) {
	templates := s.store.Templates()
	rows := make([]any, 0, len(templates))
	for _, tpl := range templates {
		if matches(c.Query("search"), tpl.Name, tpl.Category, tpl.Description) {
			rows = append(rows, tpl)
		}
	}
	writePage(c, rows)
}

func (s *Server) getTemplate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	tpl, err := s.store.Template(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tpl)
}

func (s *Server) listIOMs(c *gin.Context) {
	status := c.Query("status")
	templateID := c.Query("iom_template")
	docs := s.store.IOMs()
	rows := make([]any, 0, len(docs))
	for _, doc := range docs {
		if status != "" && string(doc.Status) != status {
			continue
		}
		if templateID != "" && strconv.FormatInt(doc.TemplateID, 10) != templateID {
			continue
		}
		if !matches(c.Query("search"), doc.Subject, doc.CreatedByUsername) {
			continue
		}
		doc.Template = nil
		rows = append(rows, doc)
	}
	writePage(c, rows)
}

func (s *Server) getIOM(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := s.store.IOM(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) createIOM(c *gin.Context) {
	var in model.Write
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Malformed JSON body."}})
		return
	}
	doc, err := s.store.CreateIOM(currentUser(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) updateIOM(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in model.Write
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Malformed JSON body."}})
		return
	}
	doc, err := s.store.UpdateIOM(currentUser(c), id, in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func actionForEndpoint(endpoint string) (workflow.Action, bool) {
	for _, action := range workflow.Actions {
		if action.Endpoint() == endpoint {
			return action, true
		}
	}
	return "", false
}

func (s *Server) actIOM(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	action, ok := actionForEndpoint(c.Param("action"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	var body struct {
		Comments string `json:"comments"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Malformed JSON body."}})
			return
		}
	}
	doc, err := s.store.Act(currentUser(c), id, action, body.Comments)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) listSteps(c *gin.Context) {
	objectID, err := strconv.ParseInt(c.Query("object_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"object_id": []string{"A valid integer is required."}})
		return
	}
	rows := []any{}
	if c.Query("content_type_app_label") == "iom" && c.Query("content_type_model") == "genericiom" {
		for _, step := range s.store.Steps(objectID) {
			rows = append(rows, step)
		}
	}
	writePage(c, rows)
}

func (s *Server) decideStep(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	decision := c.Param("decision")
	if decision != "approve" && decision != "reject" {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	var body struct {
		Comments string `json:"comments"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"non_field_errors": []string{"Malformed JSON body."}})
			return
		}
	}
	step, err := s.store.DecideStep(currentUser(c), id, decision == "approve", body.Comments)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

func (s *Server) listUsers(c *gin.Context) {
	users := s.store.Users()
	rows := make([]any, 0, len(users))
	for _, u := range users {
		if matches(c.Query("search"), u.Username, u.FirstName, u.LastName, u.Email) {
			rows = append(rows, gin.H{
				"id":         u.ID,
				"username":   u.Username,
				"full_name":  u.FullName(),
				"email":      u.Email,
				"department": u.Department,
			})
		}
	}
	writePage(c, rows)
}

func (s *Server) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// listGroups answers with a bare list, unlike the paged endpoints.
func (s *Server) listGroups(c *gin.Context) {
	rows := []model.GroupRef{}
	for _, g := range s.store.Groups() {
		if matches(c.Query("search"), g.Name) {
			rows = append(rows, g)
		}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) listLookup(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		records, _ := s.store.Lookup(endpoint)
		rows := make([]any, 0, len(records))
		for _, rec := range records {
			if !matchesRecord(c.Request.URL.Query(), rec) {
				continue
			}
			rows = append(rows, rec)
		}
		writePage(c, rows)
	}
}

func (s *Server) listContentTypes(c *gin.Context) {
	appLabel := c.Query("app_label")
	modelName := strings.ToLower(c.Query("model"))
	rows := []any{}
	for _, ct := range s.store.ContentTypes() {
		if appLabel != "" && ct.AppLabel != appLabel {
			continue
		}
		if modelName != "" && ct.Model != modelName {
			continue
		}
		rows = append(rows, ct)
	}
	writePage(c, rows)
}

var reservedParams = map[string]bool{"page": true, "page_size": true, "search": true}

func matchesRecord(query url.Values, rec Record) bool {
	var texts []string
	for _, v := range rec {
		if s, ok := v.(string); ok {
			texts = append(texts, s)
		}
	}
	if !matches(query.Get("search"), texts...) {
		return false
	}
	for key := range query {
		if reservedParams[key] {
			continue
		}
		if v, ok := rec[key]; ok && model.IDString(v) != query.Get(key) {
			return false
		}
	}
	return true
}

func matches(search string, values ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), search) {
			return true
		}
	}
	return false
}

// writePage slices rows by page/page_size and writes the paged envelope.
func writePage(c *gin.Context, rows []any) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))
	if size < 1 {
		size = DefaultPageSize
	}

	start := (page - 1) * size
	if start > len(rows) {
		start = len(rows)
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}

	var next, previous *string
	if end < len(rows) {
		link := pageLink(c, page+1)
		next = &link
	}
	if page > 1 {
		link := pageLink(c, page-1)
		previous = &link
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(rows),
		"next":     next,
		"previous": previous,
		"results":  rows[start:end],
	})
}

func pageLink(c *gin.Context, page int) string {
	u := *c.Request.URL
	u.Scheme = "http"
	if c.Request.TLS != nil {
		u.Scheme = "https"
	}
	u.Host = c.Request.Host
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
