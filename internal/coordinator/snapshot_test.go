package coordinator

import (
	"reflect"
	"testing"
	"time"
)

func TestMerge_BikesVerbatim(t *testing.T) {
	raw := decode(t, `[{"bikeId":"A1","nickName":"Cargo","extra":{"x":1}},{"bikeId":"B2"}]`)

	snap := Merge(raw, nil, time.Now())

	items := raw.([]any)
	if len(snap.Bikes) != len(items) {
		t.Fatalf("len(Bikes) = %d, want %d", len(snap.Bikes), len(items))
	}
	for i, b := range snap.Bikes {
		if !reflect.DeepEqual(b.Raw, items[i]) {
			t.Errorf("Bikes[%d].Raw = %v, want %v", i, b.Raw, items[i])
		}
	}
}

func TestMerge_StateIndex(t *testing.T) {
	states := decode(t, `[
		{"bikeId":"A1","lastOnline":"first"},
		{"bikeId":"","lastOnline":"empty id"},
		{"lastOnline":"no id"},
		{"bikeId":"A1","lastOnline":"second"},
		{"bikeId":"ORPHAN","lastOnline":"unknown bike"}
	]`)

	snap := Merge(decode(t, `[{"bikeId":"A1"},{"bikeId":"B2"}]`), states, time.Now())

	if len(snap.StatesByBikeID) != 2 {
		t.Fatalf("len(StatesByBikeID) = %d, want 2: %v", len(snap.StatesByBikeID), snap.StatesByBikeID)
	}
	if got := snap.State("A1").LastOnline; got != "second" {
		t.Errorf("duplicate id: LastOnline = %q, want last write %q", got, "second")
	}
	if _, ok := snap.StatesByBikeID["ORPHAN"]; !ok {
		t.Error("states for bikes missing from the device list must be kept")
	}
	if _, ok := snap.StatesByBikeID[""]; ok {
		t.Error("empty ids must be dropped")
	}
	if !snap.State("B2").IsZero() {
		t.Error("bike without telemetry must resolve to the zero State")
	}
}

func TestMerge_NonListResponses(t *testing.T) {
	snap := Merge(decode(t, `{"bikes":[{"bikeId":"A1"}]}`), decode(t, `"nope"`), time.Now())

	if snap.Len() != 0 {
		t.Errorf("Len() = %d, want 0", snap.Len())
	}
	if snap.StatesByBikeID == nil || len(snap.StatesByBikeID) != 0 {
		t.Errorf("StatesByBikeID = %v, want empty map", snap.StatesByBikeID)
	}
}

func TestSnapshot_Accessors(t *testing.T) {
	snap := Merge(decode(t, `[{"bikeId":"A1","nickName":"Cargo"}]`), nil, time.Now())

	b, ok := snap.Bike("A1")
	if !ok || b.NickName != "Cargo" {
		t.Errorf("Bike(A1) = (%+v, %v)", b, ok)
	}
	if _, ok := snap.Bike("missing"); ok {
		t.Error("Bike(missing) ok = true")
	}
	if _, ok := snap.Bike(""); ok {
		t.Error("Bike(\"\") ok = true")
	}

	var nilSnap *Snapshot
	if nilSnap.Len() != 0 || !nilSnap.State("A1").IsZero() {
		t.Error("nil snapshot accessors must return zero values")
	}
	if _, ok := nilSnap.Bike("A1"); ok {
		t.Error("nil snapshot Bike() ok = true")
	}
}
