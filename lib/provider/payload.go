package provider

import "strings"

// MetadataSkipProvider is the Envelope.Metadata flag a pre-provider middleware sets when it fully
// handled the operation and the provider must not be called.
const MetadataSkipProvider = "skipProvider"

// --------------------------------------------------------------------------
// Payload
// --------------------------------------------------------------------------

// Payload is implemented by every operation payload.
// All concrete payloads embed an Envelope, which gives them the Base method.
type Payload interface {
	Base() *Envelope
}

// Envelope holds the fields shared by all payloads.
type Envelope struct {
	Method   Method
	Trigger  Trigger
	Errors   []*Error
	Metadata map[string]any
}

// Base returns the envelope itself.
func (e *Envelope) Base() *Envelope { return e }

// AddError appends a data error.
// Once an error is appended the payload should be returned without further mutation.
func (e *Envelope) AddError(err *Error) {
	if err.Method == MethodNone {
		err.Method = e.Method
	}
	e.Errors = append(e.Errors, err)
}

// Failed reports whether at least one error was appended.
func (e *Envelope) Failed() bool {
	return len(e.Errors) > 0
}

// Err returns the first appended error or nil.
func (e *Envelope) Err() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[0]
}

// SetMeta stores a side-channel value on the payload.
func (e *Envelope) SetMeta(key string, value any) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
}

// Meta returns a side-channel value.
func (e *Envelope) Meta(key string) (any, bool) {
	v, ok := e.Metadata[key]
	return v, ok
}

// SkipProvider reports whether a middleware asked to bypass the provider.
func (e *Envelope) SkipProvider() bool {
	skip, _ := e.Metadata[MetadataSkipProvider].(bool)
	return skip
}

// --------------------------------------------------------------------------
// Payload building blocks
// --------------------------------------------------------------------------

// KeyPath addresses a stored value or a location nested inside it.
// An empty Path addresses the value itself.
type KeyPath struct {
	Key  string
	Path []string
}

// Location renders key and path the way error messages show them ("key.a.b").
func (kp KeyPath) Location() string {
	return JoinLocation(kp.Key, kp.Path)
}

// JoinLocation renders a key with an optional path.
func JoinLocation(key string, path []string) string {
	if len(path) == 0 {
		return key
	}
	return key + "." + strings.Join(path, ".")
}

// Result is the data slot populated by a handler.
type Result[T any] struct {
	Data    T
	HasData bool
}

// SetData populates the data slot.
func (r *Result[T]) SetData(v T) {
	r.Data = v
	r.HasData = true
}

// Entry is a single key-value pair.
type Entry struct {
	Key   string
	Value any
}

// Partition is the result of a partition operation.
type Partition struct {
	Truthy map[string]any
	Falsy  map[string]any
}

// SetManyEntry is one write of a SetMany operation.
type SetManyEntry struct {
	KeyPath
	Value any
}

// --------------------------------------------------------------------------
// Payload variants (one per Method)
// --------------------------------------------------------------------------

// AutoKeyPayload returns a key that is not in use yet. Nothing is stored under it.
type AutoKeyPayload struct {
	Envelope
	Result[string]
}

// ClearPayload removes every entry. Metadata is kept.
type ClearPayload struct {
	Envelope
}

// DecPayload subtracts 1 from the number at KeyPath.
type DecPayload struct {
	Envelope
	KeyPath
}

// DeletePayload removes the value at KeyPath. Deleting an absent location is not an error.
type DeletePayload struct {
	Envelope
	KeyPath
}

// DeleteManyPayload removes the given root keys. Absent keys are skipped, and each key is
// removed on its own: a failure leaves the keys before it deleted.
type DeleteManyPayload struct {
	Envelope
	Keys []string
}

// EachPayload calls Hook for every entry in key order and stops at the first hook error.
type EachPayload struct {
	Envelope
	Hook EachHook
}

// EnsurePayload stores DefaultValue under Key if the key is absent. Data holds the value stored
// under Key afterwards.
type EnsurePayload struct {
	Envelope
	Key          string
	DefaultValue any
	// Created reports whether this operation stored the default.
	Created bool
	Result[any]
}

// EntriesPayload returns all entries keyed by root key.
type EntriesPayload struct {
	Envelope
	Result[map[string]any]
}

// EveryPayload reports whether all entries match Condition. It is true for an empty store.
type EveryPayload struct {
	Envelope
	Condition Condition
	Result[bool]
}

// FilterPayload returns the entries matching Condition.
type FilterPayload struct {
	Envelope
	Condition Condition
	Result[map[string]any]
}

// FindPayload holds the first matching entry, or a nil Data if nothing matched.
type FindPayload struct {
	Envelope
	Condition Condition
	Result[*Entry]
}

// GetPayload leaves the data slot unset (without error) when nothing is stored at the location.
type GetPayload struct {
	Envelope
	KeyPath
	Result[any]
}

// GetManyPayload maps every requested key to its value, or nil for absent keys.
type GetManyPayload struct {
	Envelope
	Keys []string
	Result[map[string]any]
}

// HasPayload reports whether a value is stored at KeyPath. A stored nil counts as present.
type HasPayload struct {
	Envelope
	KeyPath
	Result[bool]
}

// IncPayload adds 1 to the number at KeyPath.
type IncPayload struct {
	Envelope
	KeyPath
}

// KeysPayload returns all root keys in order.
type KeysPayload struct {
	Envelope
	Result[[]string]
}

// MapPayload returns one value per entry, in key order: the hook result for a MapperByHook or the
// value at the mapper path (nil where absent) for a MapperByPath.
type MapPayload struct {
	Envelope
	Mapper Mapper
	Result[[]any]
}

// MathPayload applies Operator with Operand to the number at KeyPath.
type MathPayload struct {
	Envelope
	KeyPath
	Operator MathOperator
	Operand  float64
}

// PartitionPayload splits the entries into those matching Condition and the rest.
type PartitionPayload struct {
	Envelope
	Condition Condition
	Result[Partition]
}

// PushPayload appends Value to the array at KeyPath.
type PushPayload struct {
	Envelope
	KeyPath
	Value any
}

// RandomPayload samples values from the store.
type RandomPayload struct {
	Envelope
	// Count is the number of values to return. Values below 1 mean 1.
	Count int
	// Duplicates allows an entry to be picked more than once. Without it Count must not exceed
	// the number of entries.
	Duplicates bool
	Result[[]any]
}

// RandomKeyPayload samples keys like RandomPayload samples values.
type RandomKeyPayload struct {
	Envelope
	Count      int
	Duplicates bool
	Result[[]string]
}

// RemovePayload removes every element of the array at KeyPath matching Condition.
type RemovePayload struct {
	Envelope
	KeyPath
	Condition Condition
}

// SetPayload stores Value at KeyPath, creating missing intermediate objects.
type SetPayload struct {
	Envelope
	KeyPath
	Value any
}

// SetManyPayload writes all entries. Existing keys are only replaced when Overwrite is set.
type SetManyPayload struct {
	Envelope
	Entries   []SetManyEntry
	Overwrite bool
}

// SizePayload returns the number of root keys.
type SizePayload struct {
	Envelope
	Result[int]
}

// SomePayload reports whether any entry matches Condition. It is false for an empty store.
type SomePayload struct {
	Envelope
	Condition Condition
	Result[bool]
}

// UpdatePayload replaces the value at KeyPath with the hook's return value.
type UpdatePayload struct {
	Envelope
	KeyPath
	Hook Hook[any]
	Result[any]
}

// ValuesPayload returns all values in key order.
type ValuesPayload struct {
	Envelope
	Result[[]any]
}

// --------------------------------------------------------------------------
// Constructors
// --------------------------------------------------------------------------
//
// Every constructor returns a payload with its Method set and no trigger, errors or metadata.

func envelope(m Method) Envelope { return Envelope{Method: m} }

// NewAutoKey creates an AutoKey payload.
func NewAutoKey() *AutoKeyPayload { return &AutoKeyPayload{Envelope: envelope(MethodAutoKey)} }

// NewClear creates a Clear payload.
func NewClear() *ClearPayload { return &ClearPayload{Envelope: envelope(MethodClear)} }

// NewDec creates a Dec payload for key and an optional path inside it.
func NewDec(key string, path ...string) *DecPayload {
	return &DecPayload{Envelope: envelope(MethodDec), KeyPath: KeyPath{key, path}}
}

// NewDelete creates a Delete payload for key and an optional path inside it.
func NewDelete(key string, path ...string) *DeletePayload {
	return &DeletePayload{Envelope: envelope(MethodDelete), KeyPath: KeyPath{key, path}}
}

// NewDeleteMany creates a DeleteMany payload.
func NewDeleteMany(keys ...string) *DeleteManyPayload {
	return &DeleteManyPayload{Envelope: envelope(MethodDeleteMany), Keys: keys}
}

// NewEach creates an Each payload.
func NewEach(hook EachHook) *EachPayload {
	return &EachPayload{Envelope: envelope(MethodEach), Hook: hook}
}

// NewEnsure creates an Ensure payload.
func NewEnsure(key string, defaultValue any) *EnsurePayload {
	return &EnsurePayload{Envelope: envelope(MethodEnsure), Key: key, DefaultValue: defaultValue}
}

// NewEntries creates an Entries payload.
func NewEntries() *EntriesPayload { return &EntriesPayload{Envelope: envelope(MethodEntries)} }

// NewEvery creates an Every payload.
func NewEvery(c Condition) *EveryPayload {
	return &EveryPayload{Envelope: envelope(MethodEvery), Condition: c}
}

// NewFilter creates a Filter payload.
func NewFilter(c Condition) *FilterPayload {
	return &FilterPayload{Envelope: envelope(MethodFilter), Condition: c}
}

// NewFind creates a Find payload.
func NewFind(c Condition) *FindPayload {
	return &FindPayload{Envelope: envelope(MethodFind), Condition: c}
}

// NewGet creates a Get payload for key and an optional path inside it.
func NewGet(key string, path ...string) *GetPayload {
	return &GetPayload{Envelope: envelope(MethodGet), KeyPath: KeyPath{key, path}}
}

// NewGetMany creates a GetMany payload.
func NewGetMany(keys ...string) *GetManyPayload {
	return &GetManyPayload{Envelope: envelope(MethodGetMany), Keys: keys}
}

// NewHas creates a Has payload for key and an optional path inside it.
func NewHas(key string, path ...string) *HasPayload {
	return &HasPayload{Envelope: envelope(MethodHas), KeyPath: KeyPath{key, path}}
}

// NewInc creates an Inc payload for key and an optional path inside it.
func NewInc(key string, path ...string) *IncPayload {
	return &IncPayload{Envelope: envelope(MethodInc), KeyPath: KeyPath{key, path}}
}

// NewKeys creates a Keys payload.
func NewKeys() *KeysPayload { return &KeysPayload{Envelope: envelope(MethodKeys)} }

// NewMap creates a Map payload.
func NewMap(m Mapper) *MapPayload {
	return &MapPayload{Envelope: envelope(MethodMap), Mapper: m}
}

// NewMath creates a Math payload.
func NewMath(key string, path []string, op MathOperator, operand float64) *MathPayload {
	return &MathPayload{Envelope: envelope(MethodMath), KeyPath: KeyPath{key, path}, Operator: op, Operand: operand}
}

// NewPartition creates a Partition payload.
func NewPartition(c Condition) *PartitionPayload {
	return &PartitionPayload{Envelope: envelope(MethodPartition), Condition: c}
}

// NewPush creates a Push payload.
func NewPush(key string, path []string, value any) *PushPayload {
	return &PushPayload{Envelope: envelope(MethodPush), KeyPath: KeyPath{key, path}, Value: value}
}

// NewRandom creates a Random payload.
func NewRandom(count int, duplicates bool) *RandomPayload {
	return &RandomPayload{Envelope: envelope(MethodRandom), Count: count, Duplicates: duplicates}
}

// NewRandomKey creates a RandomKey payload.
func NewRandomKey(count int, duplicates bool) *RandomKeyPayload {
	return &RandomKeyPayload{Envelope: envelope(MethodRandomKey), Count: count, Duplicates: duplicates}
}

// NewRemove creates a Remove payload.
func NewRemove(key string, path []string, c Condition) *RemovePayload {
	return &RemovePayload{Envelope: envelope(MethodRemove), KeyPath: KeyPath{key, path}, Condition: c}
}

// NewSet creates a Set payload.
func NewSet(key string, path []string, value any) *SetPayload {
	return &SetPayload{Envelope: envelope(MethodSet), KeyPath: KeyPath{key, path}, Value: value}
}

// NewSetMany creates a SetMany payload.
func NewSetMany(entries []SetManyEntry, overwrite bool) *SetManyPayload {
	return &SetManyPayload{Envelope: envelope(MethodSetMany), Entries: entries, Overwrite: overwrite}
}

// NewSize creates a Size payload.
func NewSize() *SizePayload { return &SizePayload{Envelope: envelope(MethodSize)} }

// NewSome creates a Some payload.
func NewSome(c Condition) *SomePayload {
	return &SomePayload{Envelope: envelope(MethodSome), Condition: c}
}

// NewUpdate creates an Update payload.
func NewUpdate(key string, path []string, hook Hook[any]) *UpdatePayload {
	return &UpdatePayload{Envelope: envelope(MethodUpdate), KeyPath: KeyPath{key, path}, Hook: hook}
}

// NewValues creates a Values payload.
func NewValues() *ValuesPayload { return &ValuesPayload{Envelope: envelope(MethodValues)} }
