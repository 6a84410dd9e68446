package main

import (
	"context"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/services"
	"github.com/spf13/cobra"
)

func newFindSentinelCmd(opts *rootOptions) *cobra.Command {
	var (
		maxConcurrent int
		exclude       []string
	)
	cmd := &cobra.Command{
		Use:   "find-sentinel",
		Short: "Pick a random Sentinel with room for another issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				c, err := a.assignments().FindAvailableSentinel(ctx, maxConcurrent, exclude...)
				if err != nil {
					return map[string]interface{}{"found": false}, err
				}
				return map[string]interface{}{"found": true, "sentinel": c.GitHub.Login}, nil
			})
		},
	}
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "open assignments a Sentinel may hold (default from config)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "logins to skip")
	return cmd
}

// assignFlags are shared by assign and assign-manual.
type assignFlags struct {
	login      string
	issue      string
	repo       string
	assignedAt string
}

func (f *assignFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.login, "login", "", "GitHub login of the assignee")
	cmd.Flags().StringVar(&f.issue, "issue", "", "issue as owner/repo#N, or a number with --repo")
	cmd.Flags().StringVar(&f.repo, "repo", "", "repository (owner/name)")
	cmd.Flags().StringVar(&f.assignedAt, "assigned-at", "", "assignment time, RFC 3339 (default now)")
}

func (f *assignFlags) parse() (models.IssueRef, time.Time, error) {
	if err := required("issue", f.issue); err != nil {
		return models.IssueRef{}, time.Time{}, err
	}
	ref, err := issueRef(f.repo, f.issue)
	if err != nil {
		return models.IssueRef{}, time.Time{}, err
	}
	at, err := parseTime(f.assignedAt)
	if err != nil {
		return models.IssueRef{}, time.Time{}, err
	}
	return ref, at, nil
}

func newAssignCmd(opts *rootOptions) *cobra.Command {
	var (
		f    assignFlags
		sync bool
	)
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Assign an issue to a Sentinel with a deadline",
		Long:  "Assign an issue to a Sentinel with a deadline. Without --login a free Sentinel is picked and the issue escalated when nobody is free.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				ref, at, err := f.parse()
				if err != nil {
					return nil, err
				}
				if f.login == "" {
					return a.dispatch().AssignIssue(ctx, ref)
				}

				assignment, err := a.assignments().Assign(ctx, f.login, ref, at)
				if err != nil {
					return nil, err
				}
				result := &services.DispatchResult{Issue: ref.String(), Sentinel: f.login, Deadline: &assignment.Deadline}
				if !sync {
					return result, nil
				}

				c, err := a.repo.Load(ctx, f.login)
				if err != nil {
					return result, err
				}
				return result, a.notifier().AnnounceAssignment(ctx, c, ref, *assignment)
			})
		},
	}
	f.bind(cmd)
	cmd.Flags().BoolVar(&sync, "sync", false, "also assign on GitHub, add the deadline label and notify the Sentinel")
	return cmd
}

func newAssignManualCmd(opts *rootOptions) *cobra.Command {
	var f assignFlags
	cmd := &cobra.Command{
		Use:   "assign-manual",
		Short: "Record a Knight's assignment without a deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("login", f.login); err != nil {
					return nil, err
				}
				ref, at, err := f.parse()
				if err != nil {
					return nil, err
				}
				return a.assignments().AssignManually(ctx, f.login, ref, at)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newRouteIssueCmd(opts *rootOptions) *cobra.Command {
	var (
		labels   []string
		repo     string
		issue    string
		announce bool
		dispatch bool
	)
	cmd := &cobra.Command{
		Use:   "route-issue",
		Short: "Decide whether an issue goes to Apprentices, a Sentinel or nobody",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Routing on labels alone needs no registry.
			needsRegistry := issue != "" && dispatch
			return opts.run(cmd, needsRegistry, func(ctx context.Context, a *app) (interface{}, error) {
				routing := a.routing()
				if issue == "" {
					return &services.RouteDecision{Route: routing.Route(labels)}, nil
				}
				ref, err := issueRef(repo, issue)
				if err != nil {
					return nil, err
				}
				var d *services.DispatchService
				if dispatch {
					d = a.dispatch()
				}
				return routing.RouteIssue(ctx, ref, announce, d)
			})
		},
	}
	cmd.Flags().StringSliceVar(&labels, "labels", nil, "issue labels, used when --issue is not given")
	cmd.Flags().StringVar(&repo, "repo", "", "repository (owner/name)")
	cmd.Flags().StringVar(&issue, "issue", "", "issue as owner/repo#N, or a number with --repo")
	cmd.Flags().BoolVar(&announce, "announce", false, "announce apprentice issues on Discord")
	cmd.Flags().BoolVar(&dispatch, "dispatch", false, "assign sentinel issues to a free Sentinel")
	return cmd
}

func newEscalateCmd(opts *rootOptions) *cobra.Command {
	var repo, issue string
	cmd := &cobra.Command{
		Use:   "escalate",
		Short: "Hand an issue to the Knights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("issue", issue); err != nil {
					return nil, err
				}
				ref, err := issueRef(repo, issue)
				if err != nil {
					return nil, err
				}
				if err := a.routing().Escalate(ctx, ref); err != nil {
					return nil, err
				}
				return map[string]interface{}{"issue": ref.String(), "escalated": true}, nil
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "repository (owner/name)")
	cmd.Flags().StringVar(&issue, "issue", "", "issue as owner/repo#N, or a number with --repo")
	return cmd
}
