package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tourneykit/api/httpapi"
	"tourneykit/authz"
	"tourneykit/badges"
	"tourneykit/core"
	sdk "tourneykit/sdk/go"
)

const requestTimeout = 10 * time.Second

func newBadgesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "badges",
		Short: "Inspect the badge catalog and derive badges from stats",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "catalog",
		Short: "List every badge in catalog order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), map[string]any{"badges": badges.Default().Badges()})
		},
	})

	var statsJSON, file string
	derive := &cobra.Command{
		Use:   "derive",
		Short: "Derive badges from a stat record",
		Long: `Derive badges from a stat record given as JSON through --stats, --file,
or standard input. Fields that are missing or malformed evaluate as zero.`,
		Example: `  tourneykit badges derive --stats '{"tournaments_won": 3}'
  echo '{"tournamentsJoined": 5}' | tourneykit badges derive`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readStats(cmd, statsJSON, file)
			if err != nil {
				return err
			}
			var stats core.StatRecord
			if err := json.Unmarshal(raw, &stats); err != nil {
				stats = core.StatRecord{}
			}
			cat := badges.Default()
			set := cat.Derive(&stats)
			ids := set.IDs()
			if ids == nil {
				ids = []core.BadgeID{}
			}
			info := cat.Resolve(ids)
			if info == nil {
				info = []core.BadgeInfo{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"badge_ids": ids, "badges": info})
		},
	}
	derive.Flags().StringVar(&statsJSON, "stats", "", "Stat record as inline JSON")
	derive.Flags().StringVarP(&file, "file", "f", "", "Read the stat record from a file ('-' for stdin)")
	derive.MarkFlagsMutuallyExclusive("stats", "file")
	cmd.AddCommand(derive)
	return cmd
}

func readStats(cmd *cobra.Command, inline, file string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "" && file != "-":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read stats: %w", err)
		}
		return b, nil
	default:
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return b, nil
	}
}

func newRolesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "List roles and evaluate role assignments",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), map[string]any{"roles": core.Roles})
		},
	})

	var actorRole, actorEmail, superAdmin, current, requested string
	canAssign := &cobra.Command{
		Use:   "can-assign",
		Short: "Decide whether an actor may assign a role",
		Example: `  tourneykit roles can-assign --actor-role admin --actor-email owner@example.com \
    --super-admin owner@example.com --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := authz.New(superAdmin)
			actor := authz.Actor{Role: parseRoleLenient(actorRole), Email: actorEmail}
			d := a.Decide(actor, parseRoleLenient(current), parseRoleLenient(requested))
			return printJSON(cmd.OutOrStdout(), d)
		},
	}
	canAssign.Flags().StringVar(&actorRole, "actor-role", string(core.RolePlayer), "Role of the acting user")
	canAssign.Flags().StringVar(&actorEmail, "actor-email", "", "Email of the acting user")
	canAssign.Flags().StringVar(&superAdmin, "super-admin", os.Getenv("TOURNEYKIT_SUPER_ADMIN_EMAIL"), "Super-admin principal")
	canAssign.Flags().StringVar(&current, "current", string(core.RolePlayer), "Current role of the target user")
	canAssign.Flags().StringVar(&requested, "role", "", "Requested role")
	_ = canAssign.MarkFlagRequired("role")
	cmd.AddCommand(canAssign)
	return cmd
}

// parseRoleLenient keeps unknown values so the authorizer reports them.
func parseRoleLenient(s string) core.Role {
	if r, err := core.ParseRole(s); err == nil {
		return r
	}
	return core.Role(strings.TrimSpace(s))
}

func newTokenCmd() *cobra.Command {
	var secret, user string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an actor token for role routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := httpapi.IssueActorToken(secret, core.UserID(user), ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("TOURNEYKIT_SECURITY_JWT_SECRET"), "Signing secret")
	cmd.Flags().StringVar(&user, "user", "", "User id the token identifies")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime (0 for no expiry)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newProfileCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profile <user>",
		Short: "Fetch a user's profile from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			p, err := client.GetProfile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get profile: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newHealthCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the health of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := g.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			hs, err := client.Health(ctx)
			if err != nil {
				return fmt.Errorf("health: %w", err)
			}
			if hs.Status != "healthy" {
				_ = printJSON(cmd.OutOrStdout(), hs)
				return errors.New("server is unhealthy")
			}
			return printJSON(cmd.OutOrStdout(), hs)
		},
	}
}

func (g *globalFlags) client() (*sdk.Client, error) {
	return sdk.NewClient(g.host, sdk.WithAPIKey(g.apiKey), sdk.WithActorToken(g.actor))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
