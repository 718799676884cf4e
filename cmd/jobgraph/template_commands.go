package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jobgraph/internal/job"
	"jobgraph/internal/registrar"
	"jobgraph/internal/registry"
)

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "register <definition.toml>",
		Short: "Create a job template in the remote store from a definition file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := job.LoadDefinition(args[0])
			if err != nil {
				return err
			}
			client, logger, err := ctx.client()
			if err != nil {
				return err
			}
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}

			result, err := registrar.New(client, reg, logger).Register(cmd.Context(), def, force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.Created {
				fmt.Fprintf(out, "Registered template %s\n", result.Record.Name)
			} else {
				fmt.Fprintf(out, "Template %s is already registered (use --force to re-create it)\n", result.Record.Name)
			}
			fmt.Fprintln(out, renderTemplate(result.Record))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-create the template even if it is registered")
	return cmd
}

func newUnregisterCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <name>",
		Short: "Remove a registered template from the remote store and the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, logger, err := ctx.client()
			if err != nil {
				return err
			}
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			if err := registrar.New(client, reg, logger).Unregister(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unregistered template %s\n", args[0])
			return nil
		},
	}
}

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List registered templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			records, err := reg.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No templates registered")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				rows = append(rows, []string{
					rec.Name,
					rec.EntryPointID,
					rec.TemplateID,
					strconv.Itoa(len(rec.Properties)),
					strconv.Itoa(len(rec.Values)),
					rec.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Entry Point", "Template", "Inputs", "Values", "Updated"}, rows, 3, 4))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name|entry-point>",
		Short: "Show the slots of a registered template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := ctx.openRegistry()
			if err != nil {
				return err
			}
			rec, err := reg.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTemplate(*rec))
			return nil
		},
	})
	return cmd
}

func renderTemplate(rec registry.Record) string {
	rows := make([][]string, 0, len(rec.Properties)+len(rec.Values))
	for _, slot := range rec.Properties {
		rows = append(rows, []string{"input", slot.Name, strings.Join(slot.AllowedTypes, ", "), yesNo(slot.Required), "", slot.ID})
	}
	for _, slot := range rec.Values {
		rows = append(rows, []string{"value", slot.Name, string(slot.Type), yesNo(slot.Required), slot.Default, slot.ID})
	}
	header := renderDetails([][2]string{
		{"Name", rec.Name},
		{"Entry point", rec.EntryPointID},
		{"Template", rec.TemplateID},
	})
	if len(rows) == 0 {
		return header
	}
	return header + "\n" + renderTable([]string{"Kind", "Slot", "Type", "Required", "Default", "Identifier"}, rows)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
