package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/mroshb/group_quiz_bot/internal/config"
	"github.com/mroshb/group_quiz_bot/internal/repositories"
	"github.com/mroshb/group_quiz_bot/internal/security"
	"github.com/mroshb/group_quiz_bot/internal/services"
	"github.com/spf13/cobra"
)

func newWhitelistCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whitelist",
		Short: "Manage the groups the bot answers in",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print whitelisted groups",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withWhitelist(cmd, func(repo *repositories.WhitelistRepository) error {
					groups, err := repo.List(cmd.Context())
					if err != nil {
						return err
					}
					for _, g := range groups {
						fmt.Fprintln(cmd.OutOrStdout(), g)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "add <group>...",
			Short: "Whitelist one or more groups",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withWhitelist(cmd, func(repo *repositories.WhitelistRepository) error {
					return addGroups(cmd, repo, args)
				})
			},
		},
		&cobra.Command{
			Use:   "remove <group>...",
			Short: "Remove groups from the whitelist",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withWhitelist(cmd, func(repo *repositories.WhitelistRepository) error {
					for _, g := range args {
						removed, err := repo.Remove(cmd.Context(), strings.TrimSpace(g))
						if err != nil {
							return err
						}
						if !removed {
							fmt.Fprintf(cmd.OutOrStdout(), "%s not whitelisted\n", g)
							continue
						}
						fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", g)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "import <file.xlsx>",
			Short: "Whitelist the group ids in the first column of a spreadsheet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				ids, err := services.ReadGroupIDs(f)
				if err != nil {
					return err
				}
				return withWhitelist(cmd, func(repo *repositories.WhitelistRepository) error {
					return addGroups(cmd, repo, ids)
				})
			},
		},
	)
	return cmd
}

func withWhitelist(cmd *cobra.Command, fn func(*repositories.WhitelistRepository) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required to manage the whitelist")
	}
	store, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(repositories.NewWhitelistRepository(store))
}

func addGroups(cmd *cobra.Command, repo *repositories.WhitelistRepository, groups []string) error {
	var added, skipped int
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if !security.ValidateGroupAddress(g) {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping invalid group id %q\n", g)
			skipped++
			continue
		}
		ok, err := repo.Add(cmd.Context(), g)
		if err != nil {
			return err
		}
		if ok {
			added++
		} else {
			skipped++
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %d, skipped %d\n", added, skipped)
	return nil
}
