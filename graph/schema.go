package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/buildhub/datasync_backend/models"
	"github.com/buildhub/datasync_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphqls
var sourceData string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: sourceData, BuiltIn: false})

type Config struct {
	Resolvers  *Resolver
	Directives DirectiveRoot
}

type DirectiveRoot struct {
	HasRole func(ctx context.Context, obj interface{}, next graphql.Resolver, roles []string) (res interface{}, err error)
}

// fieldFunc resolves one field of obj. Plain struct reads and resolver calls
// share the shape so both go through the field middleware chain.
type fieldFunc func(ctx context.Context, obj interface{}, args map[string]interface{}) (interface{}, error)

type fieldSpec struct {
	resolve    fieldFunc
	isResolver bool
}

type executableSchema struct {
	resolvers  *Resolver
	directives DirectiveRoot
	objects    map[string]map[string]fieldSpec
}

// NewExecutableSchema binds the schema in schema.graphqls to cfg.Resolvers.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	es := &executableSchema{resolvers: cfg.Resolvers, directives: cfg.Directives}
	es.objects = es.bindObjects()
	return es
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Complexity(typeName, field string, childComplexity int, rawArgs map[string]interface{}) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	oc := graphql.GetOperationContext(ctx)

	var rootType string
	switch oc.Operation.Operation {
	case ast.Query:
		rootType = "Query"
	case ast.Mutation:
		rootType = "Mutation"
	default:
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}

	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false
		ec := &executionContext{executableSchema: e, oc: oc}
		data, ok := ec.executeObject(ctx, rootType, oc.Operation.SelectionSet, nil)
		if !ok {
			data = json.RawMessage("null")
		}
		return &graphql.Response{Data: data}
	}
}

type executionContext struct {
	*executableSchema
	oc *graphql.OperationContext
}

// executeObject writes the selected fields of obj in selection order. Root
// fields run one after another, which mutations require. A false
// return means a non-null field came back null and the object itself is null.
func (ec *executionContext) executeObject(ctx context.Context, typeName string, sel ast.SelectionSet, obj interface{}) (json.RawMessage, bool) {
	fields := graphql.CollectFields(ec.oc, sel, []string{typeName})
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(field.Alias)
		buf.Write(key)
		buf.WriteByte(':')

		value, ok := ec.executeField(ctx, typeName, field, obj)
		if !ok {
			return nil, false
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), true
}

func (ec *executionContext) executeField(ctx context.Context, typeName string, field graphql.CollectedField, obj interface{}) (json.RawMessage, bool) {
	switch field.Name {
	case "__typename":
		name, _ := json.Marshal(typeName)
		return name, true
	case "__schema", "__type":
		fc := &graphql.FieldContext{Object: typeName, Field: field}
		graphql.AddError(graphql.WithFieldContext(ctx, fc), errors.New("introspection disabled"))
		return json.RawMessage("null"), true
	}

	binding, ok := ec.objects[typeName][field.Name]
	if !ok || field.Definition == nil {
		fc := &graphql.FieldContext{Object: typeName, Field: field}
		graphql.AddError(graphql.WithFieldContext(ctx, fc), fmt.Errorf("unknown field %s.%s", typeName, field.Name))
		return json.RawMessage("null"), true
	}

	args := field.ArgumentMap(ec.oc.Variables)
	fc := &graphql.FieldContext{
		Object:     typeName,
		Field:      field,
		Args:       args,
		IsMethod:   binding.isResolver,
		IsResolver: binding.isResolver,
	}
	ctx = graphql.WithFieldContext(ctx, fc)

	next := func(rctx context.Context) (interface{}, error) {
		return binding.resolve(rctx, obj, args)
	}
	if roles := requiredRoles(field.Definition); roles != nil && ec.directives.HasRole != nil {
		resolve := next
		next = func(rctx context.Context) (interface{}, error) {
			return ec.directives.HasRole(rctx, obj, resolve, roles)
		}
	}

	var res interface{}
	var err error
	if ec.oc.ResolverMiddleware != nil {
		res, err = ec.oc.ResolverMiddleware(ctx, next)
	} else {
		res, err = next(ctx)
	}
	if err != nil {
		graphql.AddError(ctx, err)
		return ec.null(ctx, field.Definition.Type, false)
	}
	fc.Result = res
	return ec.completeValue(ctx, field.Definition.Type, field.Selections, res)
}

// requiredRoles reads @hasRole(roles: [...]) off a field definition.
func requiredRoles(def *ast.FieldDefinition) []string {
	dir := def.Directives.ForName("hasRole")
	if dir == nil {
		return nil
	}
	arg := dir.Arguments.ForName("roles")
	if arg == nil || arg.Value == nil {
		return []string{}
	}
	roles := make([]string, 0, len(arg.Value.Children))
	for _, child := range arg.Value.Children {
		roles = append(roles, child.Value.Raw)
	}
	return roles
}

// null is the value written for a missing result. For a non-null type it
// propagates to the parent; report is false when the cause is already recorded.
func (ec *executionContext) null(ctx context.Context, typ *ast.Type, report bool) (json.RawMessage, bool) {
	if typ.NonNull {
		if report && !graphql.HasFieldError(ctx, graphql.GetFieldContext(ctx)) {
			graphql.AddErrorf(ctx, "must not be null")
		}
		return nil, false
	}
	return json.RawMessage("null"), true
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func (ec *executionContext) completeValue(ctx context.Context, typ *ast.Type, sel ast.SelectionSet, v interface{}) (json.RawMessage, bool) {
	if isNil(v) {
		return ec.null(ctx, typ, true)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}

	if typ.Elem != nil {
		if rv.Kind() != reflect.Slice {
			graphql.AddErrorf(ctx, "expected a list, got %T", v)
			return ec.null(ctx, typ, false)
		}
		items, ok := ec.completeList(ctx, typ.Elem, sel, rv)
		if !ok {
			return ec.null(ctx, typ, false)
		}
		return items, true
	}

	def := parsedSchema.Types[typ.NamedType]
	if def == nil {
		graphql.AddErrorf(ctx, "unknown type %s", typ.NamedType)
		return ec.null(ctx, typ, false)
	}
	switch def.Kind {
	case ast.Object:
		out, ok := ec.executeObject(ctx, def.Name, sel, rv.Interface())
		if !ok {
			return ec.null(ctx, typ, false)
		}
		return out, true
	case ast.Scalar, ast.Enum:
		out, err := marshalScalar(def.Name, rv.Interface())
		if err != nil {
			graphql.AddError(ctx, err)
			return ec.null(ctx, typ, false)
		}
		return out, true
	}
	graphql.AddErrorf(ctx, "unsupported output type %s", def.Name)
	return ec.null(ctx, typ, false)
}

// completeList resolves elements concurrently so per-item loader calls land in
// one batch. Order is kept by index.
func (ec *executionContext) completeList(ctx context.Context, elem *ast.Type, sel ast.SelectionSet, rv reflect.Value) (json.RawMessage, bool) {
	n := rv.Len()
	values := make([]json.RawMessage, n)
	valid := make([]bool, n)

	run := func(i int) {
		fc := &graphql.FieldContext{Index: &i, Result: rv.Index(i).Interface()}
		values[i], valid[i] = ec.completeValue(graphql.WithFieldContext(ctx, fc), elem, sel, rv.Index(i).Interface())
	}
	if n == 1 || ec.isLeaf(elem) {
		for i := 0; i < n; i++ {
			run(i)
		}
	} else {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				run(i)
			}(i)
		}
		wg.Wait()
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := 0; i < n; i++ {
		if !valid[i] {
			return nil, false
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(values[i])
	}
	buf.WriteByte(']')
	return buf.Bytes(), true
}

func (ec *executionContext) isLeaf(typ *ast.Type) bool {
	if typ.Elem != nil {
		return false
	}
	def := parsedSchema.Types[typ.NamedType]
	return def == nil || def.Kind != ast.Object
}

func marshalScalar(typeName string, v interface{}) (json.RawMessage, error) {
	switch typeName {
	case "Decimal":
		d, ok := v.(decimal.Decimal)
		if !ok {
			return nil, fmt.Errorf("%T is not a Decimal", v)
		}
		return json.RawMessage(d.String()), nil
	case "Time":
		t, ok := v.(time.Time)
		if !ok {
			return nil, fmt.Errorf("%T is not a Time", v)
		}
		return json.Marshal(t.UTC().Format(time.RFC3339Nano))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return json.Marshal(rv.String())
	case reflect.Bool:
		return json.Marshal(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return json.RawMessage(strconv.FormatInt(rv.Int(), 10)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return json.RawMessage(strconv.FormatUint(rv.Uint(), 10)), nil
	}
	return nil, fmt.Errorf("cannot marshal %T as %s", v, typeName)
}

func prop[T any](get func(T) interface{}) fieldSpec {
	return fieldSpec{resolve: func(_ context.Context, obj interface{}, _ map[string]interface{}) (interface{}, error) {
		v, ok := obj.(T)
		if !ok {
			return nil, fmt.Errorf("unexpected object %T", obj)
		}
		return get(v), nil
	}}
}

func resolver(fn fieldFunc) fieldSpec {
	return fieldSpec{resolve: fn, isResolver: true}
}

func (e *executableSchema) bindObjects() map[string]map[string]fieldSpec {
	r := e.resolvers
	return map[string]map[string]fieldSpec{
		"Query": {
			"consistencyReport": resolver(func(ctx context.Context, _ interface{}, args map[string]interface{}) (interface{}, error) {
				return r.ConsistencyReport(ctx, stringArg(args, "userId"), boolArg(args, "record"))
			}),
			"latestConsistencyReport": resolver(func(ctx context.Context, _ interface{}, args map[string]interface{}) (interface{}, error) {
				return r.LatestConsistencyReport(ctx, stringArg(args, "userId"))
			}),
		},
		"Mutation": {
			"syncOrder": resolver(func(ctx context.Context, _ interface{}, args map[string]interface{}) (interface{}, error) {
				payload, err := unmarshalOrderSyncInput(args["input"])
				if err != nil {
					return nil, err
				}
				return r.SyncOrder(ctx, payload)
			}),
			"syncProject": resolver(func(ctx context.Context, _ interface{}, args map[string]interface{}) (interface{}, error) {
				payload, err := unmarshalProjectSyncInput(args["input"])
				if err != nil {
					return nil, err
				}
				return r.SyncProject(ctx, payload)
			}),
			"reconcileUser": resolver(func(ctx context.Context, _ interface{}, args map[string]interface{}) (interface{}, error) {
				return r.ReconcileUser(ctx, stringArg(args, "userId"))
			}),
		},
		"ConsistencyReport": {
			"userId":          prop(func(o models.ConsistencyReport) interface{} { return o.UserId }),
			"isConsistent":    prop(func(o models.ConsistencyReport) interface{} { return o.IsConsistent }),
			"inconsistencies": prop(func(o models.ConsistencyReport) interface{} { return o.Inconsistencies }),
			"recommendations": prop(func(o models.ConsistencyReport) interface{} { return o.Recommendations }),
			"drifts":          prop(func(o models.ConsistencyReport) interface{} { return o.Drifts }),
			"checkedAt":       prop(func(o models.ConsistencyReport) interface{} { return o.CheckedAt }),
		},
		"Drift": {
			"checkType":      prop(func(o models.Drift) interface{} { return o.CheckType }),
			"entityType":     prop(func(o models.Drift) interface{} { return o.EntityType }),
			"entityId":       prop(func(o models.Drift) interface{} { return o.EntityId }),
			"cached":         prop(func(o models.Drift) interface{} { return o.Cached }),
			"computed":       prop(func(o models.Drift) interface{} { return o.Computed }),
			"message":        prop(func(o models.Drift) interface{} { return o.Message }),
			"recommendation": prop(func(o models.Drift) interface{} { return o.Recommendation }),
			"entity": resolver(func(ctx context.Context, obj interface{}, _ map[string]interface{}) (interface{}, error) {
				drift, ok := obj.(models.Drift)
				if !ok {
					return nil, fmt.Errorf("unexpected object %T", obj)
				}
				return r.DriftEntity(ctx, drift)
			}),
		},
		"DriftEntity": {
			"id":   prop(func(o models.DriftEntity) interface{} { return o.ID }),
			"type": prop(func(o models.DriftEntity) interface{} { return o.Type }),
			"name": prop(func(o models.DriftEntity) interface{} { return o.Name }),
		},
		"RepairResult": {
			"userId":          prop(func(o models.RepairResult) interface{} { return o.UserId }),
			"success":         prop(func(o models.RepairResult) interface{} { return o.Success }),
			"fixedIssues":     prop(func(o models.RepairResult) interface{} { return o.FixedIssues }),
			"remainingIssues": prop(func(o models.RepairResult) interface{} { return o.RemainingIssues }),
		},
		"SyncResult": {
			"eventType":      prop(func(o workflow.SyncResult) interface{} { return o.EventType }),
			"referenceId":    prop(func(o workflow.SyncResult) interface{} { return o.ReferenceId }),
			"success":        prop(func(o workflow.SyncResult) interface{} { return o.Success }),
			"syncedDomains":  prop(func(o workflow.SyncResult) interface{} { return o.SyncedDomains }),
			"alreadyApplied": prop(func(o workflow.SyncResult) interface{} { return o.AlreadyApplied }),
			"errors":         prop(func(o workflow.SyncResult) interface{} { return o.Errors }),
		},
	}
}
