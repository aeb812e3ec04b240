package kv

import (
	"context"
	"strings"
	"testing"

	opcall "github.com/cryguy/opcall"
)

func openStore(t *testing.T) (*opcall.ResourceTable, opcall.Value) {
	t.Helper()
	res := opcall.NewResourceTable()
	t.Cleanup(func() { res.CloseAll() })

	sc := opcall.NewCallScope(res, 0)
	defer sc.Close()
	v, oerr := opOpen(sc, []opcall.Value{opcall.String(":memory:")})
	if oerr != nil {
		t.Fatalf("opOpen: %v", oerr)
	}
	if v.Kind() != opcall.KindResource {
		t.Fatalf("opOpen returned %v, want resource", v.Kind())
	}
	return res, v
}

func drive(t *testing.T, res opcall.AsyncResult) (opcall.Value, *opcall.OpError) {
	t.Helper()
	if res.IsReady() {
		return res.Outcome()
	}
	return res.Future()(context.Background())
}

func TestPutGetRoundTrip(t *testing.T) {
	res, store := openStore(t)

	sc := opcall.NewCallScope(res, 0)
	defer sc.Close()

	if _, oerr := drive(t, opPut(sc, []opcall.Value{store, opcall.String("a"), opcall.String("1")})); oerr != nil {
		t.Fatalf("put: %v", oerr)
	}
	v, oerr := drive(t, opGet(sc, []opcall.Value{store, opcall.String("a")}))
	if oerr != nil {
		t.Fatalf("get: %v", oerr)
	}
	if v.AsString() != "1" {
		t.Errorf("get = %q, want %q", v.AsString(), "1")
	}

	// Put on an existing key overwrites.
	if _, oerr := drive(t, opPut(sc, []opcall.Value{store, opcall.String("a"), opcall.String("2")})); oerr != nil {
		t.Fatalf("overwrite: %v", oerr)
	}
	v, _ = drive(t, opGet(sc, []opcall.Value{store, opcall.String("a")}))
	if v.AsString() != "2" {
		t.Errorf("get after overwrite = %q, want %q", v.AsString(), "2")
	}
}

func TestValuesStoredInTransportEncoding(t *testing.T) {
	res, store := openStore(t)

	sc := opcall.NewCallScope(res, 0)
	defer sc.Close()

	// Each class of value survives the encode/store/decode round trip:
	// ASCII and Latin-1 take the single-byte form, wider text stays UTF-8.
	for _, val := range []string{"", "plain", "café crème", "日本語の値"} {
		if _, oerr := drive(t, opPut(sc, []opcall.Value{store, opcall.String("k"), opcall.String(val)})); oerr != nil {
			t.Fatalf("put %q: %v", val, oerr)
		}
		v, oerr := drive(t, opGet(sc, []opcall.Value{store, opcall.String("k")}))
		if oerr != nil {
			t.Fatalf("get %q: %v", val, oerr)
		}
		if v.AsString() != val {
			t.Errorf("round trip = %q, want %q", v.AsString(), val)
		}
	}

	// A Latin-1 value occupies one byte per code point on disk.
	s, _ := storeArg(sc, store)
	drive(t, opPut(sc, []opcall.Value{store, opcall.String("latin"), opcall.String("café")}))
	var (
		raw    []byte
		single bool
	)
	if err := s.db.QueryRow("SELECT value, single FROM kv WHERE key = 'latin'").Scan(&raw, &single); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if !single || len(raw) != 4 {
		t.Errorf("stored %d bytes single=%v, want 4 single-byte", len(raw), single)
	}
}

func TestGetMissingKeyUsesNotFoundClass(t *testing.T) {
	res, store := openStore(t)

	sc := opcall.NewCallScope(res, 0)
	defer sc.Close()

	_, oerr := drive(t, opGet(sc, []opcall.Value{store, opcall.String("nope")}))
	if oerr == nil {
		t.Fatal("missing key succeeded")
	}
	if oerr.Class != ClassNotFound {
		t.Errorf("error class = %q, want %q", oerr.Class, ClassNotFound)
	}
	if !strings.Contains(oerr.Message, "nope") {
		t.Errorf("error message %q does not name the key", oerr.Message)
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	res, store := openStore(t)

	sc := opcall.NewCallScope(res, 0)
	defer sc.Close()

	drive(t, opPut(sc, []opcall.Value{store, opcall.String("a"), opcall.String("1")}))

	v, oerr := drive(t, opDelete(sc, []opcall.Value{store, opcall.String("a")}))
	if oerr != nil || !v.AsBool() {
		t.Errorf("delete existing = %v, %v; want true", v, oerr)
	}
	v, oerr = drive(t, opDelete(sc, []opcall.Value{store, opcall.String("a")}))
	if oerr != nil || v.AsBool() {
		t.Errorf("delete missing = %v, %v; want false", v, oerr)
	}
}

func TestListByPrefix(t *testing.T) {
	res, store := openStore(t)

	sc := opcall.NewCallScope(res, 0)
	defer sc.Close()

	for _, k := range []string{"user:2", "user:1", "other"} {
		drive(t, opPut(sc, []opcall.Value{store, opcall.String(k), opcall.String("x")}))
	}

	v, oerr := opList(sc, []opcall.Value{store, opcall.String("user:")})
	if oerr != nil {
		t.Fatalf("list: %v", oerr)
	}
	if v.Kind() != opcall.KindObject {
		t.Fatalf("list returned %v, want object", v.Kind())
	}
	if want := `["user:1","user:2"]`; v.AsString() != want {
		t.Errorf("list = %s, want %s", v.AsString(), want)
	}

	v, _ = opList(sc, []opcall.Value{store, opcall.String("")})
	if want := `["other","user:1","user:2"]`; v.AsString() != want {
		t.Errorf("unfiltered list = %s, want %s", v.AsString(), want)
	}
}

func TestStoreArgRejectsWrongResource(t *testing.T) {
	res := opcall.NewResourceTable()
	t.Cleanup(func() { res.CloseAll() })

	sc := opcall.NewCallScope(res, 0)
	defer sc.Close()

	if _, oerr := storeArg(sc, opcall.Resource(999)); oerr == nil {
		t.Error("unknown resource id accepted")
	}
}

func TestExtensionDeclaration(t *testing.T) {
	ext := Extension()
	if ext.ErrorClasses[ClassNotFound] != "KVNotFoundError" {
		t.Errorf("ErrorClasses = %v", ext.ErrorClasses)
	}
	names := map[string]bool{}
	for _, op := range ext.Ops {
		names[op.Name] = true
	}
	for _, want := range []string{"kv_open", "kv_get", "kv_put", "kv_delete", "kv_list"} {
		if !names[want] {
			t.Errorf("op %s not declared", want)
		}
	}
}
