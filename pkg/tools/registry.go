// Package tools is the registry the dialogue policy invokes tools through.
// Every invocation is schema-validated before its executor runs, so
// executors never see malformed arguments.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/common/validation"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrUnknownTool      = errors.New("UNKNOWN_TOOL")
	ErrInvalidArguments = errors.New("TOOL_ARGUMENT_ERROR")
)

const defaultToolTimeout = 10 * time.Second

// ArgumentError carries the per-field findings of a failed schema check.
// Fields lists the offending property names so the policy can ask a
// targeted clarification question.
type ArgumentError struct {
	Tool    string
	Fields  []string
	Details []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Details, "; "))
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArguments }

// Invocation is one validated tool call, scoped to a conversation.
type Invocation struct {
	ConversationID string                 `json:"conversationId"`
	Arguments      map[string]interface{} `json:"arguments"`
}

// Result is what an executor hands back: a user-facing message plus a
// structured payload for the decision record.
type Result struct {
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Executor runs one tool.
type Executor interface {
	Execute(ctx context.Context, inv *Invocation) (*Result, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, inv *Invocation) (*Result, error)

func (f ExecutorFunc) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	return f(ctx, inv)
}

// Hook observes invocations, for metrics and tracing.
type Hook struct {
	BeforeInvoke func(tool string, inv *Invocation)
	AfterInvoke  func(tool string, result *Result, err error, elapsed time.Duration)
}

type registration struct {
	def      Definition
	executor Executor
	schema   *gojsonschema.Schema
}

// Registry holds the registered tools. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registration
	hook   *Hook
	logger logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]registration),
		logger: log.WithFields(map[string]interface{}{"component": "tool-registry"}),
	}
}

// SetHook installs the invocation observer. Call before serving traffic.
func (r *Registry) SetHook(h *Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = h
}

// Register adds a tool. The definition's input schema is compiled here so
// a broken schema is a deployment failure, not a per-turn one.
func (r *Registry) Register(def Definition, executor Executor) error {
	if err := validation.ValidateToolNaming(def.Name); err != nil {
		return fmt.Errorf("register %q: %w", def.Name, err)
	}
	if executor == nil {
		return fmt.Errorf("register %q: executor is required", def.Name)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("register %q: already registered", def.Name)
	}
	r.tools[def.Name] = registration{def: def, executor: executor, schema: schema}

	r.logger.Debug("tool registered", map[string]interface{}{
		"tool":     def.Name,
		"category": def.Category,
	})
	return nil
}

// ApplyOverrides replaces the definitions of already-registered tools with
// the ones from a registry file. Executors are kept; file entries naming
// unregistered tools are skipped with a warning.
func (r *Registry) ApplyOverrides(file *RegistryFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range file.Tools {
		reg, ok := r.tools[def.Name]
		if !ok {
			r.logger.Warn("registry file names a tool with no executor, skipping", map[string]interface{}{
				"tool": def.Name,
			})
			continue
		}
		schema, err := compileSchema(def)
		if err != nil {
			return err
		}
		reg.def = def
		reg.schema = schema
		r.tools[def.Name] = reg

		r.logger.Info("tool definition overridden from registry file", map[string]interface{}{
			"tool":    def.Name,
			"version": def.Version,
		})
	}
	return nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	return reg.def, ok
}

// List returns every registered definition, sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, reg := range r.tools {
		defs = append(defs, reg.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Invoke validates the arguments against the tool's schema and, only when
// they pass, runs the executor under the tool's timeout. Unknown names
// return ErrUnknownTool; schema mismatches return an *ArgumentError and
// the executor is never called.
func (r *Registry) Invoke(ctx context.Context, name string, inv *Invocation) (*Result, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	hook := r.hook
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if inv.Arguments == nil {
		inv.Arguments = map[string]interface{}{}
	}
	if err := validateArguments(name, reg.schema, inv.Arguments); err != nil {
		return nil, err
	}

	if hook != nil && hook.BeforeInvoke != nil {
		hook.BeforeInvoke(name, inv)
	}

	ctx, cancel := context.WithTimeout(ctx, reg.def.TimeoutOrDefault(defaultToolTimeout))
	defer cancel()

	start := time.Now()
	result, err := reg.executor.Execute(ctx, inv)
	elapsed := time.Since(start)

	if hook != nil && hook.AfterInvoke != nil {
		hook.AfterInvoke(name, result, err, elapsed)
	}

	if err != nil {
		r.logger.Warn("tool execution failed", map[string]interface{}{
			"tool":           name,
			"conversationId": inv.ConversationID,
			"error":          err.Error(),
		})
		return nil, err
	}
	return result, nil
}

func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	if len(def.InputSchema) == 0 {
		return nil, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(def.InputSchema))
	if err != nil {
		return nil, fmt.Errorf("compile input schema for %q: %w", def.Name, err)
	}
	return schema, nil
}

func validateArguments(tool string, schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("validate arguments for %s: %w", tool, err)
	}
	if result.Valid() {
		return nil
	}

	argErr := &ArgumentError{Tool: tool}
	for _, desc := range result.Errors() {
		field := desc.Field()
		// Required-property violations report the missing property name,
		// not "(root)".
		if prop, ok := desc.Details()["property"].(string); ok && desc.Type() == "required" {
			field = prop
		}
		argErr.Fields = append(argErr.Fields, field)
		argErr.Details = append(argErr.Details, desc.String())
	}
	return argErr
}
