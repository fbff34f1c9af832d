package models

import (
	"reflect"
	"sort"
	"testing"
)

func TestDivideWork_EvenSplit(t *testing.T) {
	forwarders := []string{"fwd1", "fwd2"}
	rafts := []string{"R00", "R01", "R02", "R03"}
	ccds := [][]string{{"S00"}, {"S01"}, {"S02"}, {"S03"}}

	got := DivideWork(forwarders, rafts, ccds)

	want := WorkAssignment{
		"fwd1": {Rafts: []string{"R00", "R01"}, CcdLists: [][]string{{"S00"}, {"S01"}}},
		"fwd2": {Rafts: []string{"R02", "R03"}, CcdLists: [][]string{{"S02"}, {"S03"}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDivideWork_RemainderGoesToFirstForwarder(t *testing.T) {
	forwarders := []string{"fwd1", "fwd2", "fwd3"}
	rafts := []string{"R00", "R01", "R02", "R03", "R04", "R05", "R06"}
	ccds := make([][]string, len(rafts))
	for i := range rafts {
		ccds[i] = []string{rafts[i] + "_S00"}
	}

	got := DivideWork(forwarders, rafts, ccds)

	if len(got["fwd1"].Rafts) != 3 {
		t.Errorf("expected fwd1 to get the 2-raft remainder on top of its base 2, got %d rafts: %v", len(got["fwd1"].Rafts), got["fwd1"].Rafts)
	}
	if len(got["fwd2"].Rafts) != 2 || len(got["fwd3"].Rafts) != 2 {
		t.Errorf("expected fwd2 and fwd3 to each get 2 rafts, got %d and %d", len(got["fwd2"].Rafts), len(got["fwd3"].Rafts))
	}

	var all []string
	for _, fwd := range forwarders {
		work := got[fwd]
		if len(work.Rafts) != len(work.CcdLists) {
			t.Errorf("%s: raft list and ccd list length mismatch: %d vs %d", fwd, len(work.Rafts), len(work.CcdLists))
		}
		for i, raft := range work.Rafts {
			want := []string{raft + "_S00"}
			if !reflect.DeepEqual(work.CcdLists[i], want) {
				t.Errorf("%s: ccd sub-list at index %d does not match its raft: got %v, want %v", fwd, i, work.CcdLists[i], want)
			}
		}
		all = append(all, work.Rafts...)
	}
	sort.Strings(all)
	sort.Strings(rafts)
	if !reflect.DeepEqual(all, rafts) {
		t.Errorf("every raft must be assigned exactly once: got %v, want %v", all, rafts)
	}
}

func TestDivideWork_SingleForwarderGetsAll(t *testing.T) {
	forwarders := []string{"fwd1"}
	rafts := []string{"R00", "R01", "R02"}
	ccds := [][]string{{"S00"}, {"S01"}, {"S02"}}

	got := DivideWork(forwarders, rafts, ccds)

	if !reflect.DeepEqual(got["fwd1"].Rafts, rafts) {
		t.Errorf("expected single forwarder to get all rafts, got %v", got["fwd1"].Rafts)
	}
	if !reflect.DeepEqual(got["fwd1"].CcdLists, ccds) {
		t.Errorf("expected single forwarder to get all ccd lists, got %v", got["fwd1"].CcdLists)
	}
}

func TestDivideWork_NoForwarders(t *testing.T) {
	got := DivideWork(nil, []string{"R00"}, [][]string{{"S00"}})
	if len(got) != 0 {
		t.Errorf("expected empty assignment, got %v", got)
	}
}

func TestDivideWork_MoreForwardersThanRafts(t *testing.T) {
	forwarders := []string{"fwd1", "fwd2", "fwd3"}
	rafts := []string{"R00"}
	ccds := [][]string{{"S00"}}

	got := DivideWork(forwarders, rafts, ccds)

	if !reflect.DeepEqual(got["fwd1"].Rafts, []string{"R00"}) {
		t.Errorf("expected fwd1 to get the sole raft, got %v", got["fwd1"].Rafts)
	}
	if !reflect.DeepEqual(got["fwd1"].CcdLists, [][]string{{"S00"}}) {
		t.Errorf("expected fwd1 to get the sole ccd list, got %v", got["fwd1"].CcdLists)
	}
	if len(got["fwd2"].Rafts) != 0 || len(got["fwd3"].Rafts) != 0 {
		t.Errorf("expected fwd2 and fwd3 to get no rafts, got %v and %v", got["fwd2"].Rafts, got["fwd3"].Rafts)
	}
}

func TestDivideWork_RaftsEqualForwarders(t *testing.T) {
	forwarders := []string{"fwd1", "fwd2", "fwd3"}
	rafts := []string{"R00", "R01"}
	ccds := [][]string{{"S00"}, {"S01"}}

	got := DivideWork(forwarders, rafts, ccds)

	if !reflect.DeepEqual(got["fwd1"].Rafts, []string{"R00"}) {
		t.Errorf("expected fwd1 to get R00, got %v", got["fwd1"].Rafts)
	}
	if !reflect.DeepEqual(got["fwd2"].Rafts, []string{"R01"}) {
		t.Errorf("expected fwd2 to get R01, got %v", got["fwd2"].Rafts)
	}
	if len(got["fwd3"].Rafts) != 0 {
		t.Errorf("expected fwd3 to get no rafts (R <= F, one raft per forwarder), got %v", got["fwd3"].Rafts)
	}
}

func TestRaftDictToLists(t *testing.T) {
	dict := map[string][]string{
		"R00": {"S00", "S01"},
		"R01": {"S10"},
	}

	raftList, ccdList := RaftDictToLists(dict)

	if len(raftList) != 2 || len(ccdList) != 2 {
		t.Fatalf("expected 2 entries in each list, got %d and %d", len(raftList), len(ccdList))
	}
	for i, raft := range raftList {
		if !reflect.DeepEqual(ccdList[i], dict[raft]) {
			t.Errorf("index %d: raft %s's CCD list %v does not match source %v", i, raft, ccdList[i], dict[raft])
		}
	}
}
