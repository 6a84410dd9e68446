package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alimgiray/sentinel/internal/chat"
	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/internal/services"
	"github.com/alimgiray/sentinel/internal/store"
	"github.com/alimgiray/sentinel/internal/tracker"
	"github.com/alimgiray/sentinel/pkg/config"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/spf13/cobra"
)

// app is the dependency graph of one command invocation.
type app struct {
	cfg     *config.Config
	store   store.Store
	repo    *repositories.ContributorRepository
	tracker services.IssueTracker
	chat    services.ChatPlatform
}

func newApp(ctx context.Context, cfg *config.Config, needsRegistry bool) (*app, error) {
	a := &app{cfg: cfg}
	policy := services.RetryPolicy(cfg)

	gh, err := tracker.NewGitHubTracker(cfg.GitHub.Token, cfg.GitHub.BaseURL, policy)
	if err != nil {
		return nil, err
	}
	a.tracker = gh

	if cfg.Discord.BotToken != "" {
		client, err := chat.NewClient(chat.Config{
			BaseURL:  cfg.Discord.BaseURL,
			BotToken: cfg.Discord.BotToken,
			GuildID:  cfg.Discord.GuildID,
			Policy:   policy,
		})
		if err != nil {
			return nil, err
		}
		a.chat = client
	} else {
		logger.Component("cli").Debug("Discord bot token not set, chat notifications disabled")
	}

	if needsRegistry {
		s, err := store.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open registry: %w", err)
		}
		a.store = s
		pattern := cfg.Registry.FilePattern
		if pattern == "" {
			pattern = repositories.DefaultFilePattern
		}
		a.repo = repositories.NewContributorRepository(s, pattern)
	}
	return a, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close registry store")
	}
}

func (a *app) notifier() *services.Notifier {
	return services.NewNotifier(a.tracker, a.chat, a.cfg)
}

func (a *app) contributors() *services.ContributorService {
	return services.NewContributorService(a.repo, a.cfg)
}

func (a *app) assignments() *services.AssignmentService {
	return services.NewAssignmentService(a.repo, a.cfg)
}

func (a *app) promotion() *services.PromotionService {
	return services.NewPromotionService(a.repo, a.chat, a.cfg)
}

func (a *app) onboarding() *services.OnboardingService {
	return services.NewOnboardingService(a.repo, a.contributors(), a.tracker, a.chat, a.notifier(), a.cfg)
}

func (a *app) dispatch() *services.DispatchService {
	return services.NewDispatchService(a.assignments(), a.notifier(), a.cfg, nil)
}

func (a *app) routing() *services.RoutingService {
	return services.NewRoutingService(a.tracker, a.notifier(), a.cfg)
}

type commandFunc func(ctx context.Context, a *app) (interface{}, error)

// run loads config, builds the app, calls fn and always writes a result.
// A panic in fn becomes an error result.
func (o *rootOptions) run(cmd *cobra.Command, needsRegistry bool, fn commandFunc) (err error) {
	var data interface{}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", cmd.Name(), r)
			logger.WithError(err).Error("Command panicked")
			data = nil
		}
		if werr := o.write(newResult(cmd.Name(), data, err)); werr != nil {
			logger.WithError(werr).Error("Failed to write result")
			if err == nil {
				err = werr
			}
		}
	}()

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	level := o.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	logger.Init(level)

	a, err := newApp(cmd.Context(), cfg, needsRegistry)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err = fn(cmd.Context(), a)
	if err != nil {
		entry := logger.WithError(err).WithField("command", cmd.Name())
		if models.IsExpected(err) {
			entry.Info("Command finished with expected outcome")
		} else {
			entry.Error("Command failed")
		}
	}
	return err
}

// issueRef accepts "owner/repo#N" or a bare number paired with repo.
func issueRef(repo, issue string) (models.IssueRef, error) {
	issue = strings.TrimSpace(issue)
	if strings.Contains(issue, "#") {
		return models.ParseIssueRef(issue)
	}
	n, err := strconv.Atoi(issue)
	if err != nil {
		return models.IssueRef{}, fmt.Errorf("%w: issue %q is neither owner/repo#N nor a number", models.ErrValidation, issue)
	}
	if repo == "" {
		return models.IssueRef{}, fmt.Errorf("%w: --repo is required with a bare issue number", models.ErrValidation)
	}
	return models.NewIssueRef(repo, n)
}

// parseTime parses an optional timestamp flag; empty means now.
func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Now().UTC(), nil
	}
	ts, err := models.ParseTimestamp(value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Time, nil
}

func required(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: --%s is required", models.ErrValidation, name)
	}
	return nil
}
