package main

import (
	"context"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/spf13/cobra"
)

// prFlags are the flags every onboarding command takes.
type prFlags struct {
	repo   string
	number int
	login  string
}

func (f *prFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.repo, "repo", "", "repository (owner/name)")
	cmd.Flags().IntVar(&f.number, "pr", 0, "pull request number")
	cmd.Flags().StringVar(&f.login, "login", "", "PR author")
}

func (f *prFlags) ref() (models.IssueRef, error) {
	if err := required("repo", f.repo); err != nil {
		return models.IssueRef{}, err
	}
	if err := required("login", f.login); err != nil {
		return models.IssueRef{}, err
	}
	return models.NewIssueRef(f.repo, f.number)
}

func newAskInfoCmd(opts *rootOptions) *cobra.Command {
	var f prFlags
	cmd := &cobra.Command{
		Use:   "ask-info",
		Short: "Ask a first-time contributor for their Discord id and wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, a *app) (interface{}, error) {
				ref, err := f.ref()
				if err != nil {
					return nil, err
				}
				if err := a.onboarding().AskForInfo(ctx, ref, f.login); err != nil {
					return nil, err
				}
				return map[string]interface{}{"pr": ref.String(), "asked": true}, nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newCheckResponseCmd(opts *rootOptions) *cobra.Command {
	var f prFlags
	cmd := &cobra.Command{
		Use:   "check-response",
		Short: "Look for the author's identity reply on a pull request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, a *app) (interface{}, error) {
				ref, err := f.ref()
				if err != nil {
					return nil, err
				}
				return a.onboarding().CheckResponse(ctx, ref, f.login)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func newOnboardCmd(opts *rootOptions) *cobra.Command {
	var f prFlags
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Create the Apprentice record and grant the Discord role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				ref, err := f.ref()
				if err != nil {
					return nil, err
				}
				return a.onboarding().Onboard(ctx, ref, f.login)
			})
		},
	}
	f.bind(cmd)
	return cmd
}
