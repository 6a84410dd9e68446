package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/internal/repositories"
	"github.com/alimgiray/sentinel/internal/services"
	"github.com/alimgiray/sentinel/internal/validation"
	"github.com/spf13/cobra"
)

func newCheckExistsCmd(opts *rootOptions) *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "check-exists",
		Short: "Check whether a contributor record exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("login", login); err != nil {
					return nil, err
				}
				c, err := a.repo.Load(ctx, login)
				if errors.Is(err, models.ErrNotFound) {
					return map[string]interface{}{"exists": false}, nil
				}
				if err != nil {
					return map[string]interface{}{"exists": errors.Is(err, models.ErrCorrupt)}, err
				}
				return map[string]interface{}{"exists": true, "contributor": c}, nil
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "GitHub login")
	return cmd
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var in services.NewContributorInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an Apprentice record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				return a.contributors().Create(ctx, in)
			})
		},
	}
	cmd.Flags().StringVar(&in.Login, "login", "", "GitHub login")
	cmd.Flags().StringVar(&in.ChatID, "chat-id", "", "Discord user id")
	cmd.Flags().BoolVar(&in.ChatVerified, "chat-verified", false, "the Apprentice role was granted")
	cmd.Flags().StringVar(&in.Wallet, "wallet", "", "wallet address")
	cmd.Flags().StringVar(&in.Repo, "repo", "", "repository of the first pull request (owner/name)")
	cmd.Flags().IntVar(&in.PRNumber, "pr", 0, "number of the first pull request")
	cmd.Flags().IntVar(&in.LinesChanged, "lines", 0, "lines changed in the first pull request")
	cmd.Flags().StringSliceVar(&in.Labels, "labels", nil, "labels of the first pull request")
	return cmd
}

func newUpdatePRCmd(opts *rootOptions) *cobra.Command {
	var (
		login, repo, branch  string
		number               int
		additions, deletions int
		labels               []string
		fetch                bool
	)
	cmd := &cobra.Command{
		Use:   "update-pr",
		Short: "Record a merged pull request in a contributor's history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("repo", repo); err != nil {
					return nil, err
				}
				ref, err := models.NewIssueRef(repo, number)
				if err != nil {
					return nil, err
				}

				pr := &models.PullRequest{
					Repo:       ref.RepoName(),
					Number:     ref.Number,
					Author:     login,
					Additions:  additions,
					Deletions:  deletions,
					BaseBranch: branch,
					Merged:     true,
					Labels:     labels,
				}
				if fetch {
					pr, err = a.tracker.GetPullRequest(ctx, ref)
					if err != nil {
						return nil, err
					}
					if login != "" && !strings.EqualFold(login, pr.Author) {
						return nil, fmt.Errorf("%w: %s was authored by %s, not %s", models.ErrValidation, ref, pr.Author, login)
					}
				} else if err := required("login", login); err != nil {
					return nil, err
				}
				return a.contributors().RecordMergedPR(ctx, pr)
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "PR author")
	cmd.Flags().StringVar(&repo, "repo", "", "repository (owner/name)")
	cmd.Flags().IntVar(&number, "pr", 0, "pull request number")
	cmd.Flags().IntVar(&additions, "additions", 0, "lines added")
	cmd.Flags().IntVar(&deletions, "deletions", 0, "lines deleted")
	cmd.Flags().StringSliceVar(&labels, "labels", nil, "pull request labels")
	cmd.Flags().StringVar(&branch, "branch", "", "branch the pull request was merged into")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "read the pull request from GitHub instead of the flags")
	return cmd
}

func newValidatePRCmd(opts *rootOptions) *cobra.Command {
	var (
		lines  int
		labels []string
		branch string
	)
	cmd := &cobra.Command{
		Use:   "validate-pr",
		Short: "Check whether a pull request counts toward promotion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, a *app) (interface{}, error) {
				counts := validation.ShouldCountPRTowardPromotion(labels, lines, branch, services.QualityGates(a.cfg))
				return map[string]interface{}{"counts_toward_promotion": counts}, nil
			})
		},
	}
	cmd.Flags().IntVar(&lines, "lines", 0, "lines changed")
	cmd.Flags().StringSliceVar(&labels, "labels", nil, "pull request labels")
	cmd.Flags().StringVar(&branch, "branch", "", "branch the pull request was merged into")
	return cmd
}

func newValidateRecordCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate-record",
		Short: "Validate a contributor TOML record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, false, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("file", file); err != nil {
					return nil, err
				}
				data, err := os.ReadFile(file)
				if err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", file, err)
				}
				c, problems := repositories.Inspect(data)
				if len(problems) > 0 {
					return map[string]interface{}{"valid": false, "problems": problems},
						fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(problems, "; "))
				}
				return map[string]interface{}{"valid": true, "login": c.GitHub.Login}, nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "record file")
	return cmd
}

func newSetBlockedCmd(opts *rootOptions) *cobra.Command {
	var (
		login     string
		unblocked bool
	)
	cmd := &cobra.Command{
		Use:   "set-blocked",
		Short: "Block or unblock a contributor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("login", login); err != nil {
					return nil, err
				}
				return a.contributors().SetBlocked(ctx, login, !unblocked)
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "GitHub login")
	cmd.Flags().BoolVar(&unblocked, "unblocked", false, "unblock instead of block")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the contributor roster as a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				f, err := os.Create(out)
				if err != nil {
					return nil, fmt.Errorf("failed to create %s: %w", out, err)
				}
				n, err := services.NewExportService(a.repo).Export(ctx, f)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"file": out, "contributors": n}, nil
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "roster.xlsx", "output file")
	return cmd
}
