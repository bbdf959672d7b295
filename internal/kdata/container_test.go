// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kdata

import (
	"strings"
	"testing"
)

func TestContainerSetGetPreservesOrder(t *testing.T) {
	c := NewContainer()
	c.MustSet("b", NewInt32(2))
	c.MustSet("a", NewInt32(1))
	c.MustSet("c", NewInt32(3))

	got := c.Keys()
	want := []string{"b", "a", "c"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("Keys()[%d] = %q, want %q", i, got[i], k)
		}
	}
}

func TestContainerSetOverwriteKeepsPosition(t *testing.T) {
	c := NewContainer()
	c.MustSet("a", NewInt32(1))
	c.MustSet("b", NewInt32(2))
	if err := c.Set("a", NewInt32(99)); err != nil {
		t.Fatal(err)
	}
	if got := c.Keys(); got[0] != "a" || got[1] != "b" {
		t.Fatalf("overwrite changed key order: %v", got)
	}
	v, _ := c.Get("a")
	if x, _ := v.AsInt32(); x != 99 {
		t.Fatalf("Get(a) = %v, want 99", x)
	}
}

func TestKeyValidation(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"abc", false},
		{"_abc", false},
		{"a1_b2", false},
		{"1abc", true},
		{"a-b", true},
		{"", true},
		{strings.Repeat("x", 255), false},
		{strings.Repeat("x", 256), true},
	}
	for _, tt := range tests {
		c := NewContainer()
		err := c.Set(tt.key, NewNone())
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
		}
	}
}

func TestNonStrictAllowsArbitraryCharacters(t *testing.T) {
	c := NewContainer()
	c.Strict = false
	if err := c.Set("weird key!", NewInt32(1)); err != nil {
		t.Fatalf("non-strict Set failed: %v", err)
	}
}

func TestAttributes(t *testing.T) {
	c := NewContainer()
	c.MustSet("temp", NewDouble(21.5))
	if err := c.SetAttribute("temp", "unit", NewString("degC")); err != nil {
		t.Fatal(err)
	}
	v, ok := c.GetAttribute("temp", "unit")
	if !ok {
		t.Fatal("expected attribute to be set")
	}
	if s, _ := v.AsString(); s != "degC" {
		t.Fatalf("attribute value = %q, want degC", s)
	}
}

func TestNestedContainerRejectsSelf(t *testing.T) {
	c := NewContainer()
	if err := c.Set("self", ContainerValue(c)); err == nil {
		t.Fatal("expected LogicError nesting container in itself")
	}
}

func TestGetSetPath(t *testing.T) {
	c := NewContainer()
	if err := c.SetPath("a.b.c", NewInt32(7)); err != nil {
		t.Fatal(err)
	}
	v, ok := c.GetPath("a.b.c")
	if !ok {
		t.Fatal("expected path to resolve")
	}
	if x, _ := v.AsInt32(); x != 7 {
		t.Fatalf("GetPath = %v, want 7", x)
	}
}

func TestContainerEqual(t *testing.T) {
	a := NewContainer()
	a.MustSet("n", NewInt32(42))
	a.MustSet("s", NewString("hi"))
	_ = a.SetAttribute("n", "ts", NewInt64(1000))

	b := NewContainer()
	b.MustSet("n", NewInt32(42))
	b.MustSet("s", NewString("hi"))
	_ = b.SetAttribute("n", "ts", NewInt64(1000))

	if !a.Equal(b) {
		t.Fatal("expected containers to be equal")
	}

	_ = b.SetAttribute("n", "ts", NewInt64(2000))
	if a.Equal(b) {
		t.Fatal("expected containers to differ after attribute change")
	}
}

func TestSaveLoadSequence(t *testing.T) {
	c1 := NewContainer()
	c1.MustSet("x", NewInt32(1))
	c2 := NewContainer()
	c2.MustSet("x", NewInt32(2))

	wrapped := SaveSequence([]*Container{c1, c2})
	seq := LoadSequence(wrapped)
	if len(seq) != 2 {
		t.Fatalf("LoadSequence len = %d, want 2", len(seq))
	}

	plain := NewContainer()
	plain.MustSet("y", NewInt32(3))
	seq2 := LoadSequence(plain)
	if len(seq2) != 1 || seq2[0] != plain {
		t.Fatal("LoadSequence should wrap a plain container as one-element sequence")
	}
}
