package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mailroom/internal/api"
	"mailroom/internal/ipc"
	"mailroom/internal/rules"
)

func newRuleCommand(ctx *commandContext) *cobra.Command {
	ruleCmd := &cobra.Command{
		Use:     "rule",
		Aliases: []string{"rules"},
		Short:   "Manage filing rules",
	}

	ruleCmd.AddCommand(newRuleAddCommand(ctx))
	ruleCmd.AddCommand(newRuleListCommand(ctx))
	ruleCmd.AddCommand(newRuleShowCommand(ctx))
	ruleCmd.AddCommand(newRuleRemoveCommand(ctx))

	return ruleCmd
}

func newRuleAddCommand(ctx *commandContext) *cobra.Command {
	var folder string
	var filterFrom string
	var filterSubject string
	var filterBody string
	var filterFilename string
	var maxAge int
	var attachmentType string
	var action string
	var actionParameter string
	var titleFrom string
	var correspondentFrom string
	var correspondent string
	var tags []string
	var order int

	cmd := &cobra.Command{
		Use:   "add <account> <name>",
		Short: "Add a filing rule to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRules(func(store *rules.Store) error {
				account, err := resolveAccount(cmd, store, args[0])
				if err != nil {
					return err
				}

				rule := rules.NewRule(account.ID, strings.TrimSpace(args[1]))
				if folder != "" {
					rule.Folder = folder
				}
				rule.FilterFrom = filterFrom
				rule.FilterSubject = filterSubject
				rule.FilterBody = filterBody
				rule.FilterAttachmentFilename = filterFilename
				rule.MaximumAge = maxAge
				rule.SortOrder = order

				if attachmentType != "" {
					parsed, parseErr := rules.ParseAttachmentType(attachmentType)
					if parseErr != nil {
						return parseErr
					}
					rule.AttachmentType = parsed
				}
				if action != "" {
					parsed, parseErr := rules.ParseAction(action)
					if parseErr != nil {
						return parseErr
					}
					rule.Action = parsed
				}
				rule.ActionParameter = actionParameter
				if titleFrom != "" {
					parsed, parseErr := rules.ParseTitleSource(titleFrom)
					if parseErr != nil {
						return parseErr
					}
					rule.AssignTitleFrom = parsed
				}
				if correspondentFrom != "" {
					parsed, parseErr := rules.ParseCorrespondentSource(correspondentFrom)
					if parseErr != nil {
						return parseErr
					}
					rule.AssignCorrespondentFrom = parsed
				}
				rule.AssignCorrespondent = correspondent
				rule.AssignTags = tags

				created, err := store.AddRule(cmd.Context(), &rule)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added rule %s (id %d) to account %s\n", created.Name, created.ID, account.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "IMAP folder to watch (default INBOX)")
	cmd.Flags().StringVar(&filterFrom, "filter-from", "", "Match on sender address substring")
	cmd.Flags().StringVar(&filterSubject, "filter-subject", "", "Match on subject substring")
	cmd.Flags().StringVar(&filterBody, "filter-body", "", "Match on body substring")
	cmd.Flags().StringVar(&filterFilename, "filter-filename", "", "Match on attachment filename (supports * wildcards)")
	cmd.Flags().IntVar(&maxAge, "max-age", 0, "Only consider messages newer than this many days (0 = no limit)")
	cmd.Flags().StringVar(&attachmentType, "attachment-type", "", "Parts to consider (attachments_only, everything)")
	cmd.Flags().StringVar(&action, "action", "", "Post-consume action (delete, move, flag, markread, tag)")
	cmd.Flags().StringVar(&actionParameter, "action-parameter", "", "Parameter for move/tag actions")
	cmd.Flags().StringVar(&titleFrom, "title-from", "", "Document title source (subject, filename)")
	cmd.Flags().StringVar(&correspondentFrom, "correspondent-from", "", "Correspondent source (nothing, email, name, custom)")
	cmd.Flags().StringVar(&correspondent, "correspondent", "", "Custom correspondent name")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag to assign (repeatable)")
	cmd.Flags().IntVar(&order, "order", 0, "Rule execution order within the account")
	return cmd
}

func newRuleListCommand(ctx *commandContext) *cobra.Command {
	var accountRef string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List filing rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ruleList, err := listRules(ctx, cmd, accountRef)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, ruleList)
			}
			if len(ruleList) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No rules configured")
				return nil
			}
			rows := make([][]string, 0, len(ruleList))
			for _, rule := range ruleList {
				rows = append(rows, []string{
					strconv.FormatInt(rule.ID, 10),
					rule.Name,
					strconv.FormatInt(rule.AccountID, 10),
					strconv.Itoa(rule.SortOrder),
					rule.Folder,
					rule.Action,
					ruleFilterSummary(rule),
				})
			}
			table := renderTable(
				[]string{"ID", "Name", "Account", "Order", "Folder", "Action", "Filters"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountRef, "account", "", "Only show rules for this account (name or id)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func listRules(ctx *commandContext, cmd *cobra.Command, accountRef string) ([]api.Rule, error) {
	accountRef = strings.TrimSpace(accountRef)

	if accountRef == "" {
		if client, err := ipc.Dial(ctx.socketPath()); err == nil {
			defer client.Close()
			resp, listErr := client.RuleList()
			if listErr != nil {
				return nil, listErr
			}
			return resp.Rules, nil
		}
	}

	var ruleList []api.Rule
	err := ctx.withRules(func(store *rules.Store) error {
		if accountRef == "" {
			stored, listErr := store.ListRules(cmd.Context())
			if listErr != nil {
				return listErr
			}
			ruleList = api.FromRules(stored)
			return nil
		}

		account, resolveErr := resolveAccount(cmd, store, accountRef)
		if resolveErr != nil {
			return resolveErr
		}
		stored, listErr := store.RulesForAccount(cmd.Context(), account.ID)
		if listErr != nil {
			return listErr
		}
		ruleList = api.FromRules(stored)
		return nil
	})
	return ruleList, err
}

func ruleFilterSummary(rule api.Rule) string {
	parts := make([]string, 0, 4)
	if rule.FilterFrom != "" {
		parts = append(parts, "from="+rule.FilterFrom)
	}
	if rule.FilterSubject != "" {
		parts = append(parts, "subject="+rule.FilterSubject)
	}
	if rule.FilterBody != "" {
		parts = append(parts, "body="+rule.FilterBody)
	}
	if rule.FilterAttachmentFilename != "" {
		parts = append(parts, "filename="+rule.FilterAttachmentFilename)
	}
	if len(parts) == 0 {
		return "(all messages)"
	}
	return strings.Join(parts, " ")
}

func newRuleShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a filing rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			return ctx.withRules(func(store *rules.Store) error {
				rule, err := store.RuleByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rule == nil {
					return fmt.Errorf("rule %d not found", id)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:                 %d\n", rule.ID)
				fmt.Fprintf(out, "Name:               %s\n", rule.Name)
				fmt.Fprintf(out, "Account:            %d\n", rule.AccountID)
				fmt.Fprintf(out, "Order:              %d\n", rule.SortOrder)
				fmt.Fprintf(out, "Folder:             %s\n", rule.Folder)
				if rule.FilterFrom != "" {
					fmt.Fprintf(out, "Filter From:        %s\n", rule.FilterFrom)
				}
				if rule.FilterSubject != "" {
					fmt.Fprintf(out, "Filter Subject:     %s\n", rule.FilterSubject)
				}
				if rule.FilterBody != "" {
					fmt.Fprintf(out, "Filter Body:        %s\n", rule.FilterBody)
				}
				if rule.FilterAttachmentFilename != "" {
					fmt.Fprintf(out, "Filter Filename:    %s\n", rule.FilterAttachmentFilename)
				}
				if rule.MaximumAge > 0 {
					fmt.Fprintf(out, "Maximum Age:        %d days\n", rule.MaximumAge)
				}
				fmt.Fprintf(out, "Attachment Type:    %s\n", rule.AttachmentType)
				fmt.Fprintf(out, "Action:             %s", rule.Action)
				if rule.ActionParameter != "" {
					fmt.Fprintf(out, " (%s)", rule.ActionParameter)
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Title From:         %s\n", rule.AssignTitleFrom)
				fmt.Fprintf(out, "Correspondent From: %s\n", rule.AssignCorrespondentFrom)
				if rule.AssignCorrespondent != "" {
					fmt.Fprintf(out, "Correspondent:      %s\n", rule.AssignCorrespondent)
				}
				if len(rule.AssignTags) > 0 {
					fmt.Fprintf(out, "Tags:               %s\n", strings.Join(rule.AssignTags, ", "))
				}
				return nil
			})
		},
	}
}

func newRuleRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a filing rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			return ctx.withRules(func(store *rules.Store) error {
				removed, err := store.RemoveRule(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("rule %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed rule %d\n", id)
				return nil
			})
		},
	}
}
