package stream

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/go-go-golems/parley/pkg/inference/collector"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

var ErrUnknownOperation = errors.New("unknown operation")

// ValidationError lists the schema violations of an operation input.
type ValidationError struct {
	Operation string
	Errors    []string
}

func (v *ValidationError) Error() string {
	return "invalid input for " + v.Operation + ": " + strings.Join(v.Errors, "; ")
}

// Descriptor names an operation and fixes its input and output types. It is
// shared by the server, which binds it to a resolver, and the client, which
// calls it.
type Descriptor[I any, O any] struct {
	Name string
}

func NewDescriptor[I any, O any](name string) Descriptor[I, O] {
	return Descriptor[I, O]{Name: name}
}

// ResolverFunc computes the output of an operation, streaming partial text
// through onDelta along the way.
type ResolverFunc[I any, O any] func(ctx context.Context, in I, onDelta collector.AppendFunc) (O, error)

// Operation is the type-erased form of a Procedure, as stored in a Registry.
type Operation interface {
	Name() string
	Schema() *jsonschema.Schema
	// Validate checks raw JSON input against the input schema.
	Validate(input []byte) error
	// Invoke decodes input, runs the resolver and returns the encoded payload.
	Invoke(ctx context.Context, input []byte, onDelta collector.AppendFunc) ([]byte, error)
}

type Procedure[I any, O any] struct {
	descriptor Descriptor[I, O]
	resolve    ResolverFunc[I, O]

	schemaOnce sync.Once
	schema     *jsonschema.Schema
	loader     gojsonschema.JSONLoader
	schemaErr  error
}

func NewProcedure[I any, O any](d Descriptor[I, O], resolve ResolverFunc[I, O]) *Procedure[I, O] {
	return &Procedure[I, O]{descriptor: d, resolve: resolve}
}

var _ Operation = (*Procedure[struct{}, struct{}])(nil)

func (p *Procedure[I, O]) Name() string {
	return p.descriptor.Name
}

func (p *Procedure[I, O]) reflectSchema() {
	p.schemaOnce.Do(func() {
		reflector := jsonschema.Reflector{
			// Expand definitions inline instead of using $refs
			DoNotReference: true,
		}
		var in I
		p.schema = reflector.Reflect(&in)
		// gojsonschema only knows drafts up to 7
		p.schema.Version = ""

		b, err := json.Marshal(p.schema)
		if err != nil {
			p.schemaErr = errors.Wrapf(err, "could not encode schema of %s", p.descriptor.Name)
			return
		}
		p.loader = gojsonschema.NewBytesLoader(b)
	})
}

func (p *Procedure[I, O]) Schema() *jsonschema.Schema {
	p.reflectSchema()
	return p.schema
}

func (p *Procedure[I, O]) Validate(input []byte) error {
	p.reflectSchema()
	if p.schemaErr != nil {
		return p.schemaErr
	}

	result, err := gojsonschema.Validate(p.loader, gojsonschema.NewBytesLoader(input))
	if err != nil {
		return &ValidationError{Operation: p.Name(), Errors: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	ret := &ValidationError{Operation: p.Name()}
	for _, desc := range result.Errors() {
		ret.Errors = append(ret.Errors, desc.String())
	}
	return ret
}

func (p *Procedure[I, O]) Invoke(ctx context.Context, input []byte, onDelta collector.AppendFunc) ([]byte, error) {
	var in I
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, &ValidationError{Operation: p.Name(), Errors: []string{err.Error()}}
	}
	out, err := p.resolve(ctx, in, onDelta)
	if err != nil {
		return nil, err
	}
	return EncodePayload(out)
}

// Registry maps operation names to procedures.
type Registry struct {
	mu         sync.RWMutex
	operations map[string]Operation
}

func NewRegistry() *Registry {
	return &Registry{operations: map[string]Operation{}}
}

func (r *Registry) Register(op Operation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.operations[op.Name()]; ok {
		return errors.Errorf("operation %s already registered", op.Name())
	}
	r.operations[op.Name()] = op
	return nil
}

func (r *Registry) Lookup(name string) (Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operations[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownOperation, name)
	}
	return op, nil
}

// OperationDescription is what Describe reports for each operation.
type OperationDescription struct {
	Name  string             `json:"name"`
	Input *jsonschema.Schema `json:"input"`
}

// Describe lists all registered operations sorted by name.
func (r *Registry) Describe() []OperationDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ret := make([]OperationDescription, 0, len(r.operations))
	for _, op := range r.operations {
		ret = append(ret, OperationDescription{Name: op.Name(), Input: op.Schema()})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}
