package canonicalize

import "testing"

type testEvent struct {
	V    int    `json:"v"`
	Body string `json:"body"`
	Sig  string `json:"sig,omitempty"`
}

func TestEventHash_ExcludesSig(t *testing.T) {
	signed := testEvent{V: 1, Body: "release", Sig: "deadbeef"}
	unsigned := testEvent{V: 1, Body: "release"}

	h1, err := EventHash(signed)
	if err != nil {
		t.Fatalf("EventHash(signed): %v", err)
	}
	h2, err := EventHash(unsigned)
	if err != nil {
		t.Fatalf("EventHash(unsigned): %v", err)
	}

	if h1 != h2 {
		t.Errorf("hash must ignore sig field: %s != %s", h1, h2)
	}
}

func TestEventHash_SensitiveToBody(t *testing.T) {
	a := testEvent{V: 1, Body: "release-a"}
	b := testEvent{V: 1, Body: "release-b"}

	ha, err := EventHash(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := EventHash(b)
	if err != nil {
		t.Fatal(err)
	}

	if ha == hb {
		t.Error("different bodies must not collide")
	}
}

func TestEventHash_KeyOrderIndependent(t *testing.T) {
	m1 := map[string]interface{}{"v": 1, "body": "x", "sig": "s1"}
	m2 := map[string]interface{}{"sig": "s2", "body": "x", "v": 1}

	h1, err := EventHash(m1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := EventHash(m2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash must be independent of key order and sig value: %s != %s", h1, h2)
	}
}
