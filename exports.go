package opcall

import "github.com/cryguy/opcall/internal/core"

// Type aliases re-exporting internal/core types so downstream code can
// declare ops with opcall.OpDecl, opcall.Value, etc. without importing
// the internal package directly.

type Value = core.Value
type Kind = core.Kind
type OpDecl = core.OpDecl
type ArgSpec = core.ArgSpec
type ArgKind = core.ArgKind
type RetKind = core.RetKind
type SchedulingPolicy = core.SchedulingPolicy
type SyncFn = core.SyncFn
type AsyncFn = core.AsyncFn
type FutureFunc = core.FutureFunc
type AsyncResult = core.AsyncResult
type OpError = core.OpError
type Extension = core.Extension
type RuntimeConfig = core.RuntimeConfig
type Slice = core.Slice
type SliceMode = core.SliceMode
type ExternalHandle = core.ExternalHandle
type ExternalTag = core.ExternalTag
type OwnershipMode = core.OwnershipMode
type ResourceID = core.ResourceID
type ResourceTable = core.ResourceTable
type HostResource = core.HostResource
type CallScope = core.CallScope
type JSRuntime = core.JSRuntime
type OpID = core.OpID

// Value kinds.
const (
	KindUndefined = core.KindUndefined
	KindNull      = core.KindNull
	KindBool      = core.KindBool
	KindInt32     = core.KindInt32
	KindUint32    = core.KindUint32
	KindFloat64   = core.KindFloat64
	KindBigInt    = core.KindBigInt
	KindString    = core.KindString
	KindBuffer    = core.KindBuffer
	KindExternal  = core.KindExternal
	KindResource  = core.KindResource
	KindObject    = core.KindObject
)

// Argument kinds.
const (
	ArgI32         = core.ArgI32
	ArgU32         = core.ArgU32
	ArgF64         = core.ArgF64
	ArgBool        = core.ArgBool
	ArgI64Exact    = core.ArgI64Exact
	ArgU64Exact    = core.ArgU64Exact
	ArgI64Lossy    = core.ArgI64Lossy
	ArgU64Lossy    = core.ArgU64Lossy
	ArgString      = core.ArgString
	ArgBufOwned    = core.ArgBufOwned
	ArgBufBorrowed = core.ArgBufBorrowed
	ArgBufDetach   = core.ArgBufDetach
	ArgBufAny      = core.ArgBufAny
	ArgExternal    = core.ArgExternal
	ArgResource    = core.ArgResource
	ArgValue       = core.ArgValue
)

// Return kinds.
const (
	RetVoid     = core.RetVoid
	RetBool     = core.RetBool
	RetI32      = core.RetI32
	RetU32      = core.RetU32
	RetF64      = core.RetF64
	RetI64Exact = core.RetI64Exact
	RetU64Exact = core.RetU64Exact
	RetI64Lossy = core.RetI64Lossy
	RetU64Lossy = core.RetU64Lossy
	RetString   = core.RetString
	RetBuf      = core.RetBuf
	RetExternal = core.RetExternal
	RetResource = core.RetResource
	RetValue    = core.RetValue
)

// Scheduling policies for async op completion delivery.
const (
	PolicyEager    = core.PolicyEager
	PolicyDeferred = core.PolicyDeferred
	PolicyLazy     = core.PolicyLazy
)

// Buffer ownership modes.
const (
	SliceOwned      = core.SliceOwned
	SliceBorrowed   = core.SliceBorrowed
	SliceDetachable = core.SliceDetachable
)

// External pointer ownership modes.
const (
	OwnershipBorrowed    = core.OwnershipBorrowed
	OwnershipTransferred = core.OwnershipTransferred
	OwnershipUnmanaged   = core.OwnershipUnmanaged
)

// Error classes the dispatch layer maps to JS constructors.
const (
	ClassError      = core.ClassError
	ClassTypeError  = core.ClassTypeError
	ClassRangeError = core.ClassRangeError
)

// Value constructors re-exported from core.
var (
	Undefined = core.Undefined
	Null      = core.Null
	Bool      = core.Bool
	Int32     = core.Int32
	Uint32    = core.Uint32
	Float64   = core.Float64
	Number    = core.Number
	BigInt    = core.BigInt
	Int64     = core.Int64
	Uint64    = core.Uint64
	String    = core.String
	Buffer    = core.Buffer
	External  = core.External
	Resource  = core.Resource
	Object    = core.Object
)

// Error and result helpers re-exported from core.
var (
	Errorf       = core.Errorf
	TypeErrorf   = core.TypeErrorf
	Ready        = core.Ready
	Fail         = core.Fail
	Await        = core.Await
	OwnedSlice   = core.OwnedSlice
	NewExternal  = core.NewExternal
	NullExternal = core.NullExternal
)

// DetachableSlice wraps bytes whose ownership can be moved into an op.
var DetachableSlice = core.DetachableSlice

// String transport encoding, the counterpart of CallScope.EncodeString.
// Extensions that persist or ship encoded strings use these to classify
// and to reverse the encoding.
var (
	EncodeString = core.EncodeString
	DecodeString = core.DecodeString
	IsSingleByte = core.IsSingleByte
)

// Resource-table and call-scope constructors, exported so extension
// packages can drive their op implementations directly in tests.
var (
	NewResourceTable = core.NewResourceTable
	NewCallScope     = core.NewCallScope
)

// DefaultConfig returns the default runtime configuration.
var DefaultConfig = core.DefaultConfig
