package dispatch

import (
	"reflect"
	"testing"
)

func buildTree(t *testing.T, d *Descriptor, named map[string]any) RequestTree {
	t.Helper()
	ictx, err := Bind(d, Args{Named: named}, Connection{})
	if err != nil {
		t.Fatalf("unexpected bind error: %v", err)
	}
	return BuildRequest(d, ictx)
}

func TestBuildRequest_PrunesUnsuppliedBranches(t *testing.T) {
	d := segmentDescriptor(t)

	tree := buildTree(t, d, map[string]any{"ApplicationId": "app-1", "Name": "vip"})

	want := RequestTree{
		"ApplicationId": "app-1",
		"WriteSegmentRequest": map[string]any{
			"Name": "vip",
		},
	}
	if !reflect.DeepEqual(tree, want) {
		t.Errorf("expected %#v, got %#v", want, tree)
	}
	if _, ok := tree.Lookup("WriteSegmentRequest.Dimensions"); ok {
		t.Error("expected Dimensions to be absent")
	}
}

func TestBuildRequest_PartialPruning(t *testing.T) {
	d := segmentDescriptor(t)

	tree := buildTree(t, d, map[string]any{"Recency_Duration": "DAY_7"})

	recency, ok := tree.Lookup("WriteSegmentRequest.Dimensions.Behavior.Recency")
	if !ok {
		t.Fatal("expected Recency to be present")
	}
	if want := map[string]any{"Duration": "DAY_7"}; !reflect.DeepEqual(recency, want) {
		t.Errorf("expected %v, got %v", want, recency)
	}
	for _, absent := range []string{
		"WriteSegmentRequest.Dimensions.Location",
		"WriteSegmentRequest.SegmentGroups",
		"WriteSegmentRequest.Name",
		"ApplicationId",
	} {
		if _, ok := tree.Lookup(absent); ok {
			t.Errorf("expected %s to be absent", absent)
		}
	}
}

func TestBuildRequest_SuppliedZeroValues(t *testing.T) {
	d, err := NewDescriptor(Descriptor{
		Name: "UpdateEmailChannel",
		Parameters: []ParameterSpec{
			{Name: "Enabled", Type: TypeBoolean, Path: "EmailChannelRequest.Enabled"},
			{Name: "Priority", Type: TypeInteger, Path: "EmailChannelRequest.Priority"},
			{Name: "FromAddress", Type: TypeString, Path: "EmailChannelRequest.FromAddress"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tree := buildTree(t, d, map[string]any{})
	if len(tree) != 0 {
		t.Errorf("expected empty root, got %v", tree)
	}
	if tree == nil {
		t.Error("expected root to be present")
	}

	tree = buildTree(t, d, map[string]any{"Enabled": false, "Priority": 0})
	want := RequestTree{
		"EmailChannelRequest": map[string]any{
			"Enabled":  false,
			"Priority": int64(0),
		},
	}
	if !reflect.DeepEqual(tree, want) {
		t.Errorf("expected %#v, got %#v", want, tree)
	}
}

func TestBuildRequest_EmptyCollectionIsSupplied(t *testing.T) {
	d := segmentDescriptor(t)

	tree := buildTree(t, d, map[string]any{"Country_Value": []any{}})

	v, ok := tree.Lookup("WriteSegmentRequest.Dimensions.Location.Country.Values")
	if !ok {
		t.Fatal("expected empty list to be sent")
	}
	if !reflect.DeepEqual(v, []string{}) {
		t.Errorf("expected empty list, got %#v", v)
	}
}

func TestRequestTree_Redacted(t *testing.T) {
	d, err := NewDescriptor(Descriptor{
		Name: "UpdateGcmChannel",
		Parameters: []ParameterSpec{
			{Name: "ApplicationId", Type: TypeString},
			{Name: "ApiKey", Type: TypeString, Path: "GCMChannelRequest.ApiKey", Sensitive: true},
			{Name: "Enabled", Type: TypeBoolean, Path: "GCMChannelRequest.Enabled"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	tree := buildTree(t, d, map[string]any{"ApplicationId": "app-1", "ApiKey": "secret", "Enabled": true})
	red := tree.Redacted(d)

	if v, _ := red.Lookup("GCMChannelRequest.ApiKey"); v != "*****" {
		t.Errorf("expected redacted key, got %v", v)
	}
	if v, _ := tree.Lookup("GCMChannelRequest.ApiKey"); v != "secret" {
		t.Errorf("expected original tree to be untouched, got %v", v)
	}
	if v, _ := red.Lookup("GCMChannelRequest.Enabled"); v != true {
		t.Errorf("expected Enabled to survive redaction, got %v", v)
	}
}
