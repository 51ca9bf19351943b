// cmd/tools/registry-updater/commands.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"template-verifier/internal/common/validation"
	"template-verifier/pkg/registry"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const defaultRegistryPath = "configs/activity-registry.json"

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

// now is replaced in tests to get a stable lastUpdated stamp.
var now = time.Now

func newRootCmd() *cobra.Command {
	var path string

	root := &cobra.Command{
		Use:           "registry-updater",
		Short:         "Maintain the activity registry served by the worker manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&path, "path", defaultRegistryPath, "path to the registry file")

	root.AddCommand(
		newAddCmd(&path),
		newUpdateCmd(&path),
		newValidateCmd(&path),
		newListCmd(&path),
	)
	return root
}

func newAddCmd(path *string) *cobra.Command {
	var a registry.Activity

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add a new activity to the registry",
		Example: `registry-updater add --id match-document --display-name "Match Document" --category verification --task-type match-document`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.ID == "" || a.DisplayName == "" || a.Category == "" || a.TaskType == "" {
				return fail(cmd.ErrOrStderr(), errors.New("id, display-name, category and task-type are required"))
			}
			reg, err := registry.LoadRegistry(*path)
			if errors.Is(err, os.ErrNotExist) {
				reg = &registry.ActivityRegistry{Version: "1.0.0"}
			} else if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}

			a.InputSchema = map[string]interface{}{}
			a.OutputSchema = map[string]interface{}{}
			if err := reg.Add(a); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			if err := reg.Save(*path, now()); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			okColor.Fprintf(cmd.OutOrStdout(), "added activity %s\n", a.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.ID, "id", "", "activity id")
	f.StringVar(&a.DisplayName, "display-name", "", "display name")
	f.StringVar(&a.Description, "description", "", "description")
	f.StringVar(&a.Category, "category", "", "category, e.g. templates or verification")
	f.StringVar(&a.TaskType, "task-type", "", "Zeebe task type")
	f.StringVar(&a.Version, "version", "1.0.0", "activity version")
	f.StringVar(&a.ImplementationStatus, "status", registry.StatusPlanned, "implementation status")
	f.StringVar(&a.Timeout, "timeout", "30s", "job timeout")
	f.IntVar(&a.Retries, "retries", 3, "job retries")
	return cmd
}

func newUpdateCmd(path *string) *cobra.Command {
	var id, field, value string

	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Update one field of an existing activity",
		Example: "registry-updater update --id match-document --field status --value completed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			a, ok := reg.FindByID(id)
			if !ok {
				return fail(cmd.ErrOrStderr(), fmt.Errorf("activity with ID %s not found", id))
			}
			if err := setField(a, field, value); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			if problems := reg.Check(); len(problems) > 0 {
				return fail(cmd.ErrOrStderr(), errors.New(strings.Join(problems, "; ")))
			}
			if err := reg.Save(*path, now()); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			okColor.Fprintf(cmd.OutOrStdout(), "updated %s.%s = %s\n", id, field, value)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "activity id")
	cmd.Flags().StringVar(&field, "field", "", "field to update")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func setField(a *registry.Activity, field, value string) error {
	switch field {
	case "status":
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "category":
		a.Category = value
	case "taskType":
		a.TaskType = value
	case "timeout":
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retries value: %w", err)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}

// validate runs the structural checks and then compiles every input schema
// the way the worker manager does at startup.
func newValidateCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the registry and compile its input schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			if problems := reg.Check(); len(problems) > 0 {
				for _, p := range problems {
					warnColor.Fprintf(cmd.ErrOrStderr(), "  - %s\n", p)
				}
				return fail(cmd.ErrOrStderr(), fmt.Errorf("%d registry problems", len(problems)))
			}
			if _, err := validation.CompileRegistry(reg); err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			okColor.Fprintf(cmd.OutOrStdout(), "registry valid: %d activities\n", len(reg.Activities))
			return nil
		},
	}
}

func newListCmd(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered activities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.LoadRegistry(*path)
			if err != nil {
				return fail(cmd.ErrOrStderr(), err)
			}
			activities := append([]registry.Activity(nil), reg.Activities...)
			sort.Slice(activities, func(i, j int) bool {
				if activities[i].Category != activities[j].Category {
					return activities[i].Category < activities[j].Category
				}
				return activities[i].ID < activities[j].ID
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tTASK TYPE\tSTATUS\tTIMEOUT\tSCHEMA")
			for _, a := range activities {
				schema := "-"
				if len(a.InputSchema) > 0 {
					schema = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Category, a.TaskType, a.ImplementationStatus, a.Timeout, schema)
			}
			return tw.Flush()
		},
	}
}

func fail(w io.Writer, err error) error {
	failColor.Fprintf(w, "error: %v\n", err)
	return err
}
