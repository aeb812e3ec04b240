package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cryguy/opcall/internal/core"
)

// preludeJS installs the JS-visible dispatch surface: the flat
// globalThis.ops namespace, the wire codec, the pending-promise map, and
// the settlement entry points the pump calls. The op table and the
// error-constructor map are injected as literals at bootstrap; dispatch
// itself never hashes names.
const preludeJS = `
(function() {
	var table = __OP_TABLE_JSON__;
	var ctors = __ERR_CTORS_JSON__;
	var pending = {};

	var B64 = 'ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/';
	function b64encode(bytes) {
		var out = '';
		for (var i = 0; i < bytes.length; i += 3) {
			var a = bytes[i], b = bytes[i + 1], c = bytes[i + 2];
			out += B64[a >> 2] + B64[((a & 3) << 4) | (b === undefined ? 0 : b >> 4)];
			out += b === undefined ? '=' : B64[((b & 15) << 2) | (c === undefined ? 0 : c >> 6)];
			out += c === undefined ? '=' : B64[c & 63];
		}
		return out;
	}
	function b64decode(s) {
		var clean = s.replace(/=+$/, '');
		var out = new Uint8Array(Math.floor(clean.length * 3 / 4));
		var buf = 0, bits = 0, n = 0;
		for (var i = 0; i < clean.length; i++) {
			buf = (buf << 6) | B64.indexOf(clean[i]);
			bits += 6;
			if (bits >= 8) {
				bits -= 8;
				out[n++] = (buf >> bits) & 255;
			}
		}
		return out;
	}

	function HostResource(rid) { this.rid = rid; }
	HostResource.prototype.close = function() { return ops.close(this); };
	var finreg = null;
	if (typeof FinalizationRegistry === 'function') {
		finreg = new FinalizationRegistry(function(rid) { __opdropres(rid); });
	}
	function makeResource(rid) {
		var r = new HostResource(rid);
		if (finreg) finreg.register(r, rid);
		return r;
	}

	function ExternalPointer(id) { this.id = id; }

	function abOf(v) {
		if (v instanceof ArrayBuffer) return { buffer: v, offset: 0, length: v.byteLength };
		if (ArrayBuffer.isView(v)) return { buffer: v.buffer, offset: v.byteOffset, length: v.byteLength };
		return null;
	}
	function viewBytes(v) {
		var ab = abOf(v);
		if (!ab) throw new TypeError('expected a buffer');
		return new Uint8Array(ab.buffer, ab.offset, ab.length);
	}
	function moveOut(v) {
		var ab = abOf(v);
		if (!ab) throw new TypeError('expected a buffer');
		if (typeof ab.buffer.transfer === 'function') {
			var moved = ab.buffer.transfer();
			return new Uint8Array(moved, ab.offset, ab.length);
		}
		// Engine-side detach through the binding.
		globalThis.__op_detach_buf = ab.buffer;
		var b64 = __opdetach();
		delete globalThis.__op_detach_buf;
		return b64decode(b64).subarray(ab.offset, ab.offset + ab.length);
	}

	function encodeArg(kind, v) {
		switch (kind) {
		case 'buf':
		case 'borrow':
			if (v === null || v === undefined) return null;
			return { $bytes: b64encode(viewBytes(v)) };
		case 'detach':
			if (v === null || v === undefined) return null;
			return { $detach: b64encode(moveOut(v)) };
		case 'view':
			if (v === null || v === undefined) return null;
			var ab = abOf(v);
			if (!ab) throw new TypeError('expected a buffer');
			return { $view: { bytes: b64encode(new Uint8Array(ab.buffer)), offset: ab.offset, length: ab.length } };
		case 'ext':
			if (v === null || v === undefined) return { $ext: 0 };
			if (v instanceof ExternalPointer) return { $ext: v.id };
			throw new TypeError('expected an external pointer');
		case 'res':
			if (v instanceof HostResource) return { $rid: v.rid };
			if (typeof v === 'number') return { $rid: v };
			throw new TypeError('expected a resource');
		default:
			if (typeof v === 'bigint') return { $big: v.toString() };
			if (v instanceof HostResource) return { $rid: v.rid };
			if (v instanceof ExternalPointer) return { $ext: v.id };
			if (v === undefined) return null;
			return v;
		}
	}
	function encodeArgs(op, args) {
		var out = [];
		for (var i = 0; i < args.length; i++) {
			out.push(encodeArg(op.args[i] || 'any', args[i]));
		}
		return JSON.stringify(out);
	}

	function decodeWire(v) {
		if (v === null || typeof v !== 'object') return v;
		if ('$big' in v) return BigInt(v.$big);
		if ('$bytes' in v) return b64decode(v.$bytes);
		if ('$ext' in v) return v.$ext === 0 ? null : new ExternalPointer(v.$ext);
		if ('$rid' in v) return makeResource(v.$rid);
		return v;
	}

	function makeErr(cls, ctor, message, data) {
		var C = globalThis[ctor || ctors[cls] || 'Error'];
		if (typeof C !== 'function') C = Error;
		var e = new C(message);
		e.code = cls;
		if (data !== undefined) e.data = data;
		return e;
	}
	function throwEnvelope(err) {
		throw makeErr(err.class, err.ctor, err.message, err.data);
	}

	var FAST_MARK = '\u001fop:';
	function fastFallthrough(e) {
		var m = String((e && e.message) || e || '');
		var i = m.indexOf(FAST_MARK);
		if (i < 0) throw e;
		var env = JSON.parse(m.slice(i + FAST_MARK.length));
		if (env.err && env.err.notfast) return true;
		throwEnvelope(env.err);
	}
	function allNumbers(args) {
		for (var i = 0; i < args.length; i++) {
			if (typeof args[i] !== 'number') return false;
		}
		return true;
	}

	globalThis.__opResolve = function(pid, payload) {
		var p = pending[pid];
		delete pending[pid];
		if (p) p.resolve(decodeWire(JSON.parse(payload)));
	};
	globalThis.__opReject = function(pid, cls, ctor, message, data) {
		var p = pending[pid];
		delete pending[pid];
		if (p) p.reject(makeErr(cls, ctor, message, data));
	};
	globalThis.__opPendingCount = function() {
		var n = 0;
		for (var k in pending) n++;
		return n;
	};

	var ops = {};
	table.forEach(function(op) {
		if (op.async) {
			ops[op.name] = function() {
				var env = JSON.parse(__opcall_async(op.id, encodeArgs(op, arguments)));
				if (env.err) throwEnvelope(env.err);
				if ('promise' in env) {
					var pid = env.promise;
					return new Promise(function(resolve, reject) {
						pending[pid] = { resolve: resolve, reject: reject };
					});
				}
				return decodeWire(env.value);
			};
			return;
		}
		ops[op.name] = function() {
			if (op.fast && arguments.length === op.arity && allNumbers(arguments)) {
				try {
					switch (op.arity) {
					case 0: return __opcall_fast0(op.id);
					case 1: return __opcall_fast1(op.id, arguments[0]);
					case 2: return __opcall_fast2(op.id, arguments[0], arguments[1]);
					case 3: return __opcall_fast3(op.id, arguments[0], arguments[1], arguments[2]);
					}
				} catch (e) {
					fastFallthrough(e);
					// Deoptimized: fall through to the slow path.
				}
			}
			var env = JSON.parse(__opcall_sync(op.id, encodeArgs(op, arguments)));
			if (env.err) throwEnvelope(env.err);
			return decodeWire(env.value);
		};
	});
	ops.ref = function(pid) { __opref(pid, true); };
	ops.unref = function(pid) { __opref(pid, false); };
	ops.close = function(r) {
		if (r instanceof HostResource) { __opdropres(r.rid); return; }
		__opdropres(r);
	};
	ops.external = function(id) { return id === 0 ? null : new ExternalPointer(id); };
	Object.freeze(ops);
	globalThis.ops = ops;
})();
`

var argKindNames = map[core.ArgKind]string{
	core.ArgI32:         "i32",
	core.ArgU32:         "u32",
	core.ArgF64:         "f64",
	core.ArgBool:        "bool",
	core.ArgI64Exact:    "i64",
	core.ArgU64Exact:    "u64",
	core.ArgI64Lossy:    "i64lossy",
	core.ArgU64Lossy:    "u64lossy",
	core.ArgString:      "str",
	core.ArgBufOwned:    "buf",
	core.ArgBufBorrowed: "borrow",
	core.ArgBufDetach:   "detach",
	core.ArgBufAny:      "view",
	core.ArgExternal:    "ext",
	core.ArgResource:    "res",
	core.ArgValue:       "any",
}

type preludeOp struct {
	ID    core.OpID `json:"id"`
	Name  string    `json:"name"`
	Async bool      `json:"async"`
	Fast  bool      `json:"fast"`
	Arity int       `json:"arity"`
	Args  []string  `json:"args"`
}

// BuildBootstrapJS renders the dispatch prelude for a registry. Disabled
// ops were never registered, so nothing of them reaches the namespace.
func BuildBootstrapJS(reg *core.Registry, errs *core.ErrorClassRegistry) (string, error) {
	tops := make([]preludeOp, 0, reg.Len())
	for _, op := range reg.Ops() {
		kinds := make([]string, len(op.Decl.Args))
		for i, a := range op.Decl.Args {
			kinds[i] = argKindNames[a.Kind]
		}
		tops = append(tops, preludeOp{
			ID:    op.ID,
			Name:  op.Name,
			Async: op.Async,
			Fast:  op.FastCallable,
			Arity: op.Arity,
			Args:  kinds,
		})
	}
	tableJSON, err := json.Marshal(tops)
	if err != nil {
		return "", fmt.Errorf("encoding op table: %w", err)
	}
	ctorsJSON, err := json.Marshal(errs.Constructors())
	if err != nil {
		return "", fmt.Errorf("encoding error constructors: %w", err)
	}
	js := strings.Replace(preludeJS, "__OP_TABLE_JSON__", string(tableJSON), 1)
	js = strings.Replace(js, "__ERR_CTORS_JSON__", string(ctorsJSON), 1)
	return js, nil
}
