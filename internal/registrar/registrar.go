// Package registrar creates job templates in the remote store from job
// definition files and records their identifiers in the local registry.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jobgraph/internal/job"
	"jobgraph/internal/logging"
	"jobgraph/internal/ops"
	"jobgraph/internal/registry"
	"jobgraph/internal/services"
)

// Store executes operations against the remote store.
type Store interface {
	Execute(ctx context.Context, op ops.Operation, out any) error
}

// Registrar registers job templates.
type Registrar struct {
	store    Store
	registry *registry.Store
	logger   *slog.Logger
}

// New constructs a Registrar.
func New(store Store, reg *registry.Store, logger *slog.Logger) *Registrar {
	return &Registrar{
		store:    store,
		registry: reg,
		logger:   logging.NewComponentLogger(logger, "registrar"),
	}
}

// Result reports the outcome of Register.
type Result struct {
	Record  registry.Record
	Created bool
}

// Register creates the entry point, template and slots described by def and
// links them. A definition already present in the registry is returned
// unchanged unless force is set.
func (r *Registrar) Register(ctx context.Context, def *job.Definition, force bool) (Result, error) {
	if def == nil {
		return Result{}, services.Wrap(services.ErrValidation, "registrar", "register", "definition is required", nil)
	}
	if !force {
		existing, err := r.registry.Get(ctx, def.Name)
		if err == nil {
			r.logger.Info("template already registered",
				logging.String("name", def.Name),
				logging.String(logging.FieldEntryPoint, existing.EntryPointID),
				logging.String(logging.FieldEventType, "template_reused"),
			)
			return Result{Record: *existing}, nil
		}
		if !errors.Is(err, services.ErrNotFound) {
			return Result{}, err
		}
	}

	tmpl := def.Template()

	id, err := r.create(ctx, ops.CreateEntryPoint(def.EntryPoint))
	if err != nil {
		return Result{}, fmt.Errorf("create entry point: %w", err)
	}
	tmpl.EntryPointID = id
	logger := r.logger.With(logging.String(logging.FieldEntryPoint, tmpl.EntryPointID))

	if tmpl.ID, err = r.create(ctx, ops.CreateControlActionTemplate(def.Name, def.Description)); err != nil {
		return Result{}, r.partial(logger, tmpl, fmt.Errorf("create template: %w", err))
	}

	link, err := ops.LinkEntryPointAction(tmpl.EntryPointID, tmpl.ID)
	if err != nil {
		return Result{}, r.partial(logger, tmpl, err)
	}
	if err := r.store.Execute(ctx, link, nil); err != nil {
		return Result{}, r.partial(logger, tmpl, fmt.Errorf("link template: %w", err))
	}

	for i := range tmpl.Properties {
		slot := &tmpl.Properties[i]
		if slot.ID, err = r.create(ctx, ops.CreateProperty(*slot)); err != nil {
			return Result{}, r.partial(logger, tmpl, fmt.Errorf("create input %q: %w", slot.Name, err))
		}
		if err := r.linkSlot(ctx, tmpl.ID, slot.ID); err != nil {
			return Result{}, r.partial(logger, tmpl, fmt.Errorf("link input %q: %w", slot.Name, err))
		}
	}
	for i := range tmpl.Values {
		slot := &tmpl.Values[i]
		if slot.ID, err = r.create(ctx, ops.CreatePropertyValueSpecification(*slot)); err != nil {
			return Result{}, r.partial(logger, tmpl, fmt.Errorf("create value %q: %w", slot.Name, err))
		}
		if err := r.linkSlot(ctx, tmpl.ID, slot.ID); err != nil {
			return Result{}, r.partial(logger, tmpl, fmt.Errorf("link value %q: %w", slot.Name, err))
		}
	}

	rec := registry.FromTemplate(tmpl)
	if err := r.registry.Put(ctx, rec); err != nil {
		return Result{}, r.partial(logger, tmpl, fmt.Errorf("record template: %w", err))
	}
	logger.Info("template registered",
		logging.String("name", def.Name),
		logging.String("template_id", tmpl.ID),
		logging.Int("inputs", len(tmpl.Properties)),
		logging.Int("values", len(tmpl.Values)),
		logging.String(logging.FieldEventType, "template_registered"),
	)
	return Result{Record: rec, Created: true}, nil
}

// create runs a Create operation and returns the new node's identifier.
func (r *Registrar) create(ctx context.Context, op ops.Operation) (string, error) {
	var created ops.Created
	if err := r.store.Execute(ctx, op, &created); err != nil {
		return "", err
	}
	if created.Identifier == "" {
		return "", services.Wrap(services.ErrProtocolViolation, "registrar", op.Name, "reply carried no identifier", nil)
	}
	return created.Identifier, nil
}

func (r *Registrar) linkSlot(ctx context.Context, templateID, slotID string) error {
	link, err := ops.LinkTemplateSlot(templateID, slotID)
	if err != nil {
		return err
	}
	return r.store.Execute(ctx, link, nil)
}

// partial logs the identifiers created before err so an operator can clean
// them up.
func (r *Registrar) partial(logger *slog.Logger, tmpl job.Template, err error) error {
	logging.ErrorWithContext(logger, "template registration incomplete", "template_partial",
		logging.String("template_id", tmpl.ID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "re-run register with --force after fixing the cause"),
	)
	return err
}

// Unregister removes a registered template's nodes from the store and
// forgets it locally. Nodes that are already gone are not an error.
func (r *Registrar) Unregister(ctx context.Context, name string) error {
	rec, err := r.registry.Get(ctx, name)
	if err != nil {
		return err
	}
	var steps []ops.Operation
	for _, slot := range rec.Properties {
		steps = append(steps, ops.Remove(ops.RelationControlActionObject, rec.TemplateID, slot.ID), ops.Delete(ops.TypeProperty, slot.ID))
	}
	for _, slot := range rec.Values {
		steps = append(steps, ops.Remove(ops.RelationControlActionObject, rec.TemplateID, slot.ID), ops.Delete(ops.TypePropertyValueSpecification, slot.ID))
	}
	steps = append(steps,
		ops.Remove(ops.RelationEntryPointPotentialAction, rec.EntryPointID, rec.TemplateID),
		ops.Delete(ops.TypeControlAction, rec.TemplateID),
		ops.Delete(ops.TypeEntryPoint, rec.EntryPointID),
	)
	for _, op := range steps {
		if err := r.store.Execute(ctx, op, nil); err != nil {
			return fmt.Errorf("unregister %q: %w", name, err)
		}
	}
	if err := r.registry.Delete(ctx, name); err != nil {
		return err
	}
	r.logger.Info("template unregistered",
		logging.String("name", name),
		logging.String(logging.FieldEntryPoint, rec.EntryPointID),
		logging.String(logging.FieldEventType, "template_unregistered"),
	)
	return nil
}
