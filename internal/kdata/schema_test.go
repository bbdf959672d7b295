// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kdata

import "testing"

func buildTestSchema() *Schema {
	s := NewSchema("motor")
	s.Params.MustSet("speed", NewNone())
	_ = s.Params.SetAttribute("speed", AttrAssignment, NewString(AssignmentOptional))
	_ = s.Params.SetAttribute("speed", AttrDefaultValue, NewDouble(1.0))
	_ = s.Params.SetAttribute("speed", AttrMin, NewDouble(0.0))
	_ = s.Params.SetAttribute("speed", AttrMax, NewDouble(10.0))

	s.Params.MustSet("name", NewNone())
	_ = s.Params.SetAttribute("name", AttrAssignment, NewString(AssignmentMandatory))

	s.Params.MustSet("mode", NewNone())
	_ = s.Params.SetAttribute("mode", AttrAssignment, NewString(AssignmentOptional))
	_ = s.Params.SetAttribute("mode", AttrDefaultValue, NewString("auto"))
	_ = s.Params.SetAttribute("mode", AttrOptions, NewVectorString([]string{"auto", "manual"}))
	return s
}

func TestSchemaValidateFillsDefaults(t *testing.T) {
	s := buildTestSchema()
	cfg := NewContainer()
	cfg.MustSet("name", NewString("m1"))

	res := s.Validate(cfg, "")
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	v, ok := res.Normalized.Get("speed")
	if !ok {
		t.Fatal("expected default for speed to be filled in")
	}
	if x, _ := v.AsDouble(); x != 1.0 {
		t.Fatalf("speed default = %v, want 1.0", x)
	}
}

func TestSchemaValidateMandatoryMissing(t *testing.T) {
	s := buildTestSchema()
	cfg := NewContainer()
	res := s.Validate(cfg, "")
	if res.OK() {
		t.Fatal("expected mandatory-missing error")
	}
}

func TestSchemaValidateBoundsAndOptions(t *testing.T) {
	s := buildTestSchema()
	cfg := NewContainer()
	cfg.MustSet("name", NewString("m1"))
	cfg.MustSet("speed", NewDouble(99.0))
	cfg.MustSet("mode", NewString("turbo"))

	res := s.Validate(cfg, "")
	if res.OK() {
		t.Fatal("expected bound and option violations")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(res.Errors), res.Errors)
	}
}
