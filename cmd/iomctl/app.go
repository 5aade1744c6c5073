package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-iom/internal/config"
	"github.com/goliatone/go-iom/internal/drafts"
	"github.com/goliatone/go-iom/internal/logging"
	"github.com/goliatone/go-iom/pkg/client"
	"github.com/goliatone/go-iom/pkg/form"
	"github.com/goliatone/go-iom/pkg/model"
	"github.com/goliatone/go-iom/pkg/notify"
	"github.com/goliatone/go-iom/pkg/options"
	"github.com/goliatone/go-iom/pkg/renderers/tui"
	exprvis "github.com/goliatone/go-iom/pkg/visibility/expr"
	"github.com/goliatone/go-iom/pkg/workflow"
)

// app carries the wiring shared by the subcommands.
type app struct {
	cfg    config.Client
	logger *logrus.Entry
	notify notify.Sink

	api    *client.Client
	user   model.User
	ui     *tui.Renderer
	labels *labelCache
	drafts *drafts.Store
}

func newApp(ctx context.Context, envFile string, offline bool) (*app, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.LoadClient(files...)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat, nil).WithField("app", "iomctl"),
		notify: consoleSink{},
	}
	if offline {
		return a, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a.api, err = client.New(cfg.APIURL,
		client.WithToken(cfg.APIToken),
		client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		client.WithLogger(logging.Component(a.logger, "client")),
	)
	if err != nil {
		return nil, err
	}
	a.user, err = a.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	a.logger = a.logger.WithField("user", a.user.Username)

	adapterOpts := []options.Option{
		options.WithLogger(logging.Component(a.logger, "options")),
		options.WithDebounce(cfg.Debounce()),
	}
	if cfg.PageSize > 0 {
		adapterOpts = append(adapterOpts, options.WithPageSize(cfg.PageSize))
	}
	a.labels = newLabelCache(ctx, a.api, adapterOpts...)

	uiOpts := []tui.Option{
		tui.WithFetcher(a.api),
		tui.WithLogger(logging.Component(a.logger, "tui")),
		tui.WithDebounce(cfg.Debounce()),
		tui.WithLabelResolver(a.labels.Resolve),
	}
	if cfg.PageSize > 0 {
		uiOpts = append(uiOpts, tui.WithPageSize(cfg.PageSize))
	}
	a.ui, err = tui.New(uiOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// draftStore opens the draft database on first use.
func (a *app) draftStore(ctx context.Context) (*drafts.Store, error) {
	if a.drafts != nil {
		return a.drafts, nil
	}
	store, err := drafts.Open(ctx, a.cfg.Drafts(), drafts.WithLogger(logging.Component(a.logger, "drafts")))
	if err != nil {
		return nil, err
	}
	a.drafts = store
	return store, nil
}

func (a *app) formOptions(ctx context.Context) ([]form.Option, error) {
	store, err := a.draftStore(ctx)
	if err != nil {
		return nil, err
	}
	return []form.Option{
		form.WithUser(a.user),
		form.WithNotifier(a.notify),
		form.WithLogger(logging.Component(a.logger, "form")),
		form.WithDraftStore(store),
		form.WithVisibility(exprvis.New()),
	}, nil
}

func (a *app) session() *workflow.Session {
	return workflow.NewSession(a.api, workflow.ActorFromUser(a.user),
		workflow.WithNotifier(a.notify),
		workflow.WithLogger(logging.Component(a.logger, "workflow")),
		workflow.WithTemplates(a.api),
		workflow.WithStepContentType(a.cfg.StepAppLabel, a.cfg.StepModel),
	)
}

func (a *app) Close() {
	if a.labels != nil {
		a.labels.Close()
	}
	if a.drafts != nil {
		if err := a.drafts.Close(); err != nil {
			a.logger.WithError(err).Warn("close drafts")
		}
	}
}

// consoleSink prints notifications on stderr.
type consoleSink struct{}

func (consoleSink) Notify(level notify.Level, text string) {
	fmt.Fprintf(os.Stderr, "[%s] %s\n", strings.ToUpper(string(level)), text)
}
