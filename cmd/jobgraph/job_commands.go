package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"jobgraph/internal/job"
	"jobgraph/internal/ops"
	"jobgraph/internal/requester"
	"jobgraph/internal/services"
)

func newRequestCommand(ctx *commandContext) *cobra.Command {
	var nodeFlags []string
	var valueFlags []string
	var templateID string
	var noWait bool
	var deadline time.Duration

	cmd := &cobra.Command{
		Use:   "request <template|entry-point>",
		Short: "Request a job and wait for it to finish",
		Long: "Request a job against a registered template. Bind node inputs with\n" +
			"--node slot=identifier[:Type] and literal values with --value slot=value.\n" +
			"With --template-id the template is read from the remote store instead\n" +
			"of the local registry; the argument is then the entry point identifier.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, logger, err := ctx.client()
			if err != nil {
				return err
			}
			runCtx := services.WithRequestID(cmd.Context(), uuid.NewString())

			tmpl, err := resolveTemplate(runCtx, ctx, client, args[0], templateID)
			if err != nil {
				return err
			}
			nodes, err := parseNodeBindings(nodeFlags)
			if err != nil {
				return err
			}
			values, err := parseValueBindings(tmpl, valueFlags)
			if err != nil {
				return err
			}

			var opts []requester.Option
			if deadline > 0 {
				opts = append(opts, requester.WithDeadline(deadline))
			}
			req, err := requester.New(cfg, client, logger, opts...)
			if err != nil {
				return err
			}
			request := requester.Request{Template: tmpl, Nodes: nodes, Values: values}
			id, err := req.Submit(runCtx, request)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Requested job %s\n", id)
			if noWait {
				return nil
			}

			result, waitErr := req.Wait(runCtx, id)
			fmt.Fprintln(out, renderResult(result, shouldColorize(out)))
			if waitErr != nil {
				return waitErr
			}
			if result.Status == job.StatusFailed {
				return fmt.Errorf("job %s failed", id)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&nodeFlags, "node", "n", nil, "Node input binding slot=identifier[:Type] (repeatable)")
	cmd.Flags().StringArrayVarP(&valueFlags, "value", "V", nil, "Literal value binding slot=value (repeatable)")
	cmd.Flags().StringVar(&templateID, "template-id", "", "Read the template with this identifier from the remote store")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the job is requested")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "Give up waiting after this long (default from config)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, logger, err := ctx.client()
			if err != nil {
				return err
			}
			req, err := requester.New(cfg, client, logger)
			if err != nil {
				return err
			}
			result, err := req.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderResult(result, shouldColorize(out)))
			return nil
		},
	}
}

// resolveTemplate loads the template from the registry, or from the remote
// store when templateID is set.
func resolveTemplate(ctx context.Context, cmdCtx *commandContext, client requester.Store, key, templateID string) (job.Template, error) {
	if strings.TrimSpace(templateID) != "" {
		var node ops.TemplateNode
		if err := client.Execute(ctx, ops.QueryTemplate(templateID), &node); err != nil {
			return job.Template{}, fmt.Errorf("read template: %w", err)
		}
		return node.Template(key), nil
	}
	reg, err := cmdCtx.openRegistry()
	if err != nil {
		return job.Template{}, err
	}
	rec, err := reg.Lookup(ctx, key)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return job.Template{}, fmt.Errorf("template %q is not registered; run `jobgraph register` or pass --template-id", key)
		}
		return job.Template{}, err
	}
	return rec.Template(), nil
}

func parseNodeBindings(flags []string) ([]job.NodeBinding, error) {
	bindings := make([]job.NodeBinding, 0, len(flags))
	for _, flag := range flags {
		slot, rest, ok := strings.Cut(flag, "=")
		if !ok || strings.TrimSpace(slot) == "" || strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("invalid --node %q (want slot=identifier[:Type])", flag)
		}
		binding := job.NodeBinding{Slot: strings.TrimSpace(slot), NodeID: strings.TrimSpace(rest)}
		if id, nodeType, ok := strings.Cut(binding.NodeID, ":"); ok {
			if !job.ValidArtifactType(job.ArtifactType(nodeType)) {
				return nil, services.Wrap(services.ErrUnsupportedValue, "cli", "parse --node",
					fmt.Sprintf("node type %q", nodeType), nil)
			}
			binding.NodeID = id
			binding.NodeType = job.ArtifactType(nodeType)
		}
		bindings = append(bindings, binding)
	}
	return bindings, nil
}

// parseValueBindings keeps empty values so that required-value validation
// reports them by slot name.
func parseValueBindings(tmpl job.Template, flags []string) ([]job.ValueBinding, error) {
	bindings := make([]job.ValueBinding, 0, len(flags))
	for _, flag := range flags {
		slot, value, ok := strings.Cut(flag, "=")
		slot = strings.TrimSpace(slot)
		if !ok || slot == "" {
			return nil, fmt.Errorf("invalid --value %q (want slot=value)", flag)
		}
		spec, ok := tmpl.Value(slot)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "cli", "parse --value",
				fmt.Sprintf("template %s has no value %q", tmpl.Name, slot), nil)
		}
		if err := checkValueType(spec, value); err != nil {
			return nil, err
		}
		bindings = append(bindings, job.ValueBinding{Slot: slot, Value: value, Type: spec.Type})
	}
	return bindings, nil
}

func checkValueType(spec job.ValueSlot, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var err error
	switch spec.Type {
	case job.ValueInteger:
		_, err = strconv.ParseInt(value, 10, 64)
	case job.ValueFloat:
		_, err = strconv.ParseFloat(value, 64)
	case job.ValueBoolean:
		_, err = strconv.ParseBool(value)
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "cli", "parse --value",
			fmt.Sprintf("value %q for %s is not a valid %s", value, spec.Name, spec.Type), nil)
	}
	return nil
}

func renderResult(res requester.Result, colorize bool) string {
	pairs := [][2]string{
		{"Job", res.InstanceID},
		{"Status", jobStatusText(res.Status, colorize)},
	}
	if res.Status == job.StatusUnknown && res.RawStatus != "" {
		pairs = append(pairs, [2]string{"Reported", res.RawStatus})
	}
	if res.Artifact != nil {
		pairs = append(pairs, [2]string{"Result", res.Artifact.ID})
		if loc := res.Artifact.Location(); loc != "" {
			pairs = append(pairs, [2]string{"Location", loc})
		}
	}
	if res.Error != "" {
		pairs = append(pairs, [2]string{"Error", res.Error})
	}
	if res.Polls > 0 {
		pairs = append(pairs, [2]string{"Waited", res.Elapsed.Round(time.Second).String()})
	}
	return renderDetails(pairs)
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}
