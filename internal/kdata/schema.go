// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kdata

import "fmt"

// Access modes a parameter descriptor may declare.
const (
	AccessRead  = "read"
	AccessWrite = "write"
	AccessInit  = "init"
)

// Assignment requirements a parameter descriptor may declare.
const (
	AssignmentMandatory = "mandatory"
	AssignmentOptional  = "optional"
	AssignmentInternal  = "internal"
)

// Descriptor attribute keys. A parameter's metadata is stored the
// same way any other Container leaf's metadata is stored: as entries
// in its AttributeMap (spec §3's "per-leaf metadata" mechanism is
// reused rather than inventing a parallel structure).
const (
	AttrValueType          = "valueType"
	AttrAccessMode         = "accessMode"
	AttrAssignment         = "assignment"
	AttrDefaultValue       = "defaultValue"
	AttrOptions            = "options"
	AttrMin                = "min"
	AttrMax                = "max"
	AttrMinExc             = "minExc"
	AttrMaxExc             = "maxExc"
	AttrAllowedStates      = "allowedStates"
	AttrUnit               = "unit"
	AttrMetricPrefix       = "metricPrefix"
	AttrRequiredAccessLvl  = "requiredAccessLevel"
	AttrTags               = "tags"
	AttrDisplayType        = "displayType"
	AttrAlias              = "alias"
	AttrRowSchema          = "rowSchema"
)

// Schema describes an expected configuration: a root name plus a
// Container of parameter descriptors keyed by parameter name (spec
// §3). Lookups use the key as given; dotted paths are not resolved
// into nested descriptors.
type Schema struct {
	RootName string
	Params   *Container
}

func NewSchema(rootName string) *Schema {
	return &Schema{RootName: rootName, Params: NewContainer()}
}

func (s *Schema) Equal(other *Schema) bool {
	if other == nil || s.RootName != other.RootName {
		return false
	}
	return s.Params.Equal(other.Params)
}

// Has reports whether path is a known parameter.
func (s *Schema) Has(path string) bool { return s.Params.Has(path) }

// Descriptor reads the attribute metadata for a path, or an empty map
// if the path is unknown.
func (s *Schema) Descriptor(path string) *AttributeMap {
	return s.Params.Attributes(path)
}

// ValidationResult is the outcome of validating a Container against a
// Schema (spec §3: "emitting a per-path error list and a normalized
// Container with defaults filled in").
type ValidationResult struct {
	Errors     []string
	Normalized *Container
}

func (r *ValidationResult) OK() bool { return len(r.Errors) == 0 }

func (r *ValidationResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg against the schema's descriptors: mandatory
// parameters must be present, optional ones without a value receive
// their default, values are checked against numeric bounds, option
// sets and allowed-states lists where declared.
func (s *Schema) Validate(cfg *Container, currentState string) *ValidationResult {
	result := &ValidationResult{Normalized: NewContainer()}
	result.Normalized.Strict = cfg.Strict

	for _, path := range s.Params.Keys() {
		attrs := s.Params.Attributes(path)
		val, present := cfg.Get(path)

		if !present {
			def, hasDefault := attrs.Get(AttrDefaultValue)
			assignment, _ := attrs.Get(AttrAssignment)
			assignStr, _ := assignment.AsString()
			switch assignStr {
			case AssignmentMandatory:
				result.fail("%s: mandatory parameter missing", path)
				continue
			default:
				if hasDefault {
					val = def
					present = true
				} else {
					continue
				}
			}
		}

		if allowed, ok := attrs.Get(AttrAllowedStates); ok {
			if states, ok := allowed.AsVectorString(); ok && currentState != "" {
				if !containsString(states, currentState) {
					result.fail("%s: not allowed in state %s", path, currentState)
				}
			}
		}

		if options, ok := attrs.Get(AttrOptions); ok {
			if !valueInOptions(val, options) {
				result.fail("%s: value not among configured options", path)
			}
		}

		if err := checkBounds(path, val, attrs); err != "" {
			result.fail("%s", err)
		}

		if present {
			if err := result.Normalized.Set(path, val); err != nil {
				result.fail("%s: %v", path, err)
			}
		}
	}

	return result
}

func containsString(v []string, s string) bool {
	for _, x := range v {
		if x == s {
			return true
		}
	}
	return false
}

func valueInOptions(v Value, options Value) bool {
	switch opts := options.Raw().(type) {
	case []string:
		s, ok := v.AsString()
		if !ok {
			return true
		}
		return containsString(opts, s)
	case []int32:
		x, ok := v.AsInt32()
		if !ok {
			return true
		}
		for _, o := range opts {
			if o == x {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func asFloat64(v Value) (float64, bool) {
	switch v.Type() {
	case TypeInt8:
		x, _ := v.AsInt8()
		return float64(x), true
	case TypeInt16:
		x, _ := v.AsInt16()
		return float64(x), true
	case TypeInt32:
		x, _ := v.AsInt32()
		return float64(x), true
	case TypeInt64:
		x, _ := v.AsInt64()
		return float64(x), true
	case TypeUint8:
		x, _ := v.AsUint8()
		return float64(x), true
	case TypeUint16:
		x, _ := v.AsUint16()
		return float64(x), true
	case TypeUint32:
		x, _ := v.AsUint32()
		return float64(x), true
	case TypeUint64:
		x, _ := v.AsUint64()
		return float64(x), true
	case TypeFloat:
		x, _ := v.AsFloat()
		return float64(x), true
	case TypeDouble:
		x, _ := v.AsDouble()
		return x, true
	default:
		return 0, false
	}
}

func checkBounds(path string, v Value, attrs *AttributeMap) string {
	x, ok := asFloat64(v)
	if !ok {
		return ""
	}
	if minV, ok := attrs.Get(AttrMin); ok {
		if m, ok := asFloat64(minV); ok && x < m {
			return fmt.Sprintf("%s: %v below minimum %v", path, x, m)
		}
	}
	if maxV, ok := attrs.Get(AttrMax); ok {
		if m, ok := asFloat64(maxV); ok && x > m {
			return fmt.Sprintf("%s: %v above maximum %v", path, x, m)
		}
	}
	if minExc, ok := attrs.Get(AttrMinExc); ok {
		if m, ok := asFloat64(minExc); ok && x <= m {
			return fmt.Sprintf("%s: %v not above exclusive minimum %v", path, x, m)
		}
	}
	if maxExc, ok := attrs.Get(AttrMaxExc); ok {
		if m, ok := asFloat64(maxExc); ok && x >= m {
			return fmt.Sprintf("%s: %v not below exclusive maximum %v", path, x, m)
		}
	}
	return ""
}
