package main

import (
	"context"

	"github.com/alimgiray/sentinel/internal/models"
	"github.com/alimgiray/sentinel/pkg/logger"
	"github.com/spf13/cobra"
)

func newCheckPromotionCmd(opts *rootOptions) *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "check-promotion",
		Short: "Report whether an Apprentice qualifies for promotion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("login", login); err != nil {
					return nil, err
				}
				return a.promotion().Check(ctx, login)
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "GitHub login")
	return cmd
}

// promoteResult is the payload of the promote command.
type promoteResult struct {
	Contributor *models.Contributor `json:"contributor"`
	RoleSwapped bool                `json:"role_swapped"`
}

func newPromoteCmd(opts *rootOptions) *cobra.Command {
	var (
		login     string
		grantRole bool
		announce  bool
	)
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Promote an eligible Apprentice to Sentinel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, true, func(ctx context.Context, a *app) (interface{}, error) {
				if err := required("login", login); err != nil {
					return nil, err
				}
				promotion := a.promotion()
				c, err := promotion.Promote(ctx, login)
				if err != nil {
					return nil, err
				}

				result := &promoteResult{Contributor: c}
				if grantRole {
					// The record is committed; a failed role swap is left for a Knight.
					if err := promotion.SwapChatRoles(ctx, c); err != nil {
						logger.WithError(err).WithField("contributor", c.GitHub.Login).Warn("Promoted but Discord roles were not swapped")
					} else {
						result.RoleSwapped = true
					}
				}
				if announce {
					a.notifier().AnnouncePromotion(ctx, c)
				}
				return result, nil
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "GitHub login")
	cmd.Flags().BoolVar(&grantRole, "grant-role", false, "swap the Discord roles after promoting")
	cmd.Flags().BoolVar(&announce, "announce", false, "announce the promotion on Discord")
	return cmd
}
