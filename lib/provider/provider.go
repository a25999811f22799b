package provider

import "context"

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Context is what a provider is initialized with.
type Context struct {
	// Name of the store the provider backs.
	Name string
}

// Options are the construction options every provider accepts.
type Options struct {
	// AllowMigrations permits Init to run a migration when the stored version is older than the
	// provider's declared version. Default false: Init fails with NeedsMigration instead.
	AllowMigrations bool
}

// Provider is a storage backend. It implements one method per operation kind.
//
// Every operation method receives a payload of its exact shape and returns the same payload,
// either with the data slot populated and no errors, or with exactly one data error appended
// (MissingData, InvalidDataType, InvalidValueType, InvalidCount or MissingValue) and the data slot
// unset. The error return value is reserved for failures that are not data errors: storage I/O,
// encoding and errors returned by caller hooks.
//
// Mutations addressing a single key are atomic with respect to that key. Operations touching
// several keys (SetMany, DeleteMany, Clear) are atomic per key only.
type Provider interface {
	// Name returns the implementation name, e.g. "DBProvider".
	Name() string
	// Version returns the version of the data layout the implementation requires.
	Version() Semver
	// Init runs the migration gate. It must be called exactly once before any operation.
	// The returned error is an *Error with identifier NeedsMigration or MigrationNotFound when the
	// stored data cannot be used.
	Init(ctx context.Context, pc Context) (Context, error)

	// --------------------------------------------------------------------------
	// Out-of-band metadata (the provider's own bookkeeping, e.g. its stored version)
	// --------------------------------------------------------------------------

	GetMetadata(ctx context.Context, key string) (value any, loaded bool, err error)
	SetMetadata(ctx context.Context, key string, value any) error
	DeleteMetadata(ctx context.Context, key string) error

	// --------------------------------------------------------------------------
	// Operations
	// --------------------------------------------------------------------------

	AutoKey(ctx context.Context, p *AutoKeyPayload) (*AutoKeyPayload, error)
	Clear(ctx context.Context, p *ClearPayload) (*ClearPayload, error)
	Dec(ctx context.Context, p *DecPayload) (*DecPayload, error)
	Delete(ctx context.Context, p *DeletePayload) (*DeletePayload, error)
	DeleteMany(ctx context.Context, p *DeleteManyPayload) (*DeleteManyPayload, error)
	Each(ctx context.Context, p *EachPayload) (*EachPayload, error)
	Ensure(ctx context.Context, p *EnsurePayload) (*EnsurePayload, error)
	Entries(ctx context.Context, p *EntriesPayload) (*EntriesPayload, error)
	Every(ctx context.Context, p *EveryPayload) (*EveryPayload, error)
	Filter(ctx context.Context, p *FilterPayload) (*FilterPayload, error)
	Find(ctx context.Context, p *FindPayload) (*FindPayload, error)
	Get(ctx context.Context, p *GetPayload) (*GetPayload, error)
	GetMany(ctx context.Context, p *GetManyPayload) (*GetManyPayload, error)
	Has(ctx context.Context, p *HasPayload) (*HasPayload, error)
	Inc(ctx context.Context, p *IncPayload) (*IncPayload, error)
	Keys(ctx context.Context, p *KeysPayload) (*KeysPayload, error)
	Map(ctx context.Context, p *MapPayload) (*MapPayload, error)
	Math(ctx context.Context, p *MathPayload) (*MathPayload, error)
	Partition(ctx context.Context, p *PartitionPayload) (*PartitionPayload, error)
	Push(ctx context.Context, p *PushPayload) (*PushPayload, error)
	Random(ctx context.Context, p *RandomPayload) (*RandomPayload, error)
	RandomKey(ctx context.Context, p *RandomKeyPayload) (*RandomKeyPayload, error)
	Remove(ctx context.Context, p *RemovePayload) (*RemovePayload, error)
	Set(ctx context.Context, p *SetPayload) (*SetPayload, error)
	SetMany(ctx context.Context, p *SetManyPayload) (*SetManyPayload, error)
	Size(ctx context.Context, p *SizePayload) (*SizePayload, error)
	Some(ctx context.Context, p *SomePayload) (*SomePayload, error)
	Update(ctx context.Context, p *UpdatePayload) (*UpdatePayload, error)
	Values(ctx context.Context, p *ValuesPayload) (*ValuesPayload, error)
}

// --------------------------------------------------------------------------
// Base implementation helpers
// --------------------------------------------------------------------------

// Base bundles what every provider needs besides its operations: its name, its options and error
// construction. Implementations embed it.
type Base struct {
	name      string
	options   Options
	resolvers []Resolver
}

// NewBase creates a Base. Extra resolvers are consulted for identifiers the shared and component
// resolvers do not know.
func NewBase(name string, options Options, resolvers ...Resolver) Base {
	return Base{name: name, options: options, resolvers: resolvers}
}

// Name returns the implementation name.
func (b *Base) Name() string { return b.name }

// Options returns the construction options.
func (b *Base) Options() Options { return b.options }

// Error builds a provider error from a bare identifier.
func (b *Base) Error(method Method, identifier string, metadata map[string]any) *Error {
	return b.ErrorWith(ErrorOptions{Identifier: identifier, Method: method, Metadata: metadata})
}

// ErrorWith builds a provider error from pre-built options.
func (b *Base) ErrorWith(opts ErrorOptions) *Error {
	return NewError(KindProvider, b.name, opts, b.resolvers...)
}

// MissingData builds a MissingData error for kp.
func (b *Base) MissingData(method Method, kp KeyPath) *Error {
	return b.Error(method, IdentifierMissingData, map[string]any{"key": kp.Key, "path": kp.Path})
}

// InvalidDataType builds an InvalidDataType error for kp expecting typ.
func (b *Base) InvalidDataType(method Method, kp KeyPath, typ string) *Error {
	return b.Error(method, IdentifierInvalidDataType, map[string]any{"key": kp.Key, "path": kp.Path, "type": typ})
}

// NewGate returns the migration gate for this provider, configured with its options.
func (b *Base) NewGate(version Semver, migrations []Migration[Context]) Gate[Context] {
	return Gate[Context]{
		Kind:            KindProvider,
		Name:            b.name,
		Version:         version,
		Migrations:      migrations,
		AllowMigrations: b.options.AllowMigrations,
	}
}
