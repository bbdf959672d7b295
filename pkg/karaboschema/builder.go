// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package karaboschema provides the canonical fluent Schema builder
// called out in the original design notes: the GUI-oriented
// per-element builders (INT32_ELEMENT, STRING_ELEMENT, ...) are a UX
// convenience layered on a device base class and are out of scope for
// the core; this package exposes the single builder they would all be
// wrapping, grounded on the parameter shapes exercised in
// original_source's testSchema.cc.
package karaboschema

import "github.com/European-XFEL/Karabo-sub015/internal/kdata"

// Builder accumulates parameter descriptors for one Schema.
type Builder struct {
	schema *kdata.Schema
}

func New(rootName string) *Builder {
	return &Builder{schema: kdata.NewSchema(rootName)}
}

// Param starts describing the parameter at path and returns a
// ParamBuilder for the fluent chain. valueType is kept on the
// ParamBuilder only; it is not written into the parameter's
// descriptor.
func (b *Builder) Param(path string, valueType kdata.Type) *ParamBuilder {
	_ = b.schema.Params.Set(path, kdata.NewNone())
	return &ParamBuilder{b: b, path: path, valueType: valueType}
}

// Build finalizes and returns the Schema.
func (b *Builder) Build() *kdata.Schema { return b.schema }

// ParamBuilder configures one parameter descriptor.
type ParamBuilder struct {
	b         *Builder
	path      string
	valueType kdata.Type
}

func (p *ParamBuilder) attr(key string, v kdata.Value) *ParamBuilder {
	_ = p.b.schema.Params.SetAttribute(p.path, key, v)
	return p
}

func (p *ParamBuilder) ReadOnly() *ParamBuilder {
	return p.attr(kdata.AttrAccessMode, kdata.NewString(kdata.AccessRead))
}

func (p *ParamBuilder) Reconfigurable() *ParamBuilder {
	return p.attr(kdata.AttrAccessMode, kdata.NewString(kdata.AccessWrite))
}

func (p *ParamBuilder) InitOnly() *ParamBuilder {
	return p.attr(kdata.AttrAccessMode, kdata.NewString(kdata.AccessInit))
}

func (p *ParamBuilder) Mandatory() *ParamBuilder {
	return p.attr(kdata.AttrAssignment, kdata.NewString(kdata.AssignmentMandatory))
}

func (p *ParamBuilder) Optional() *ParamBuilder {
	return p.attr(kdata.AttrAssignment, kdata.NewString(kdata.AssignmentOptional))
}

func (p *ParamBuilder) Internal() *ParamBuilder {
	return p.attr(kdata.AttrAssignment, kdata.NewString(kdata.AssignmentInternal))
}

func (p *ParamBuilder) DefaultValue(v kdata.Value) *ParamBuilder {
	return p.attr(kdata.AttrDefaultValue, v)
}

func (p *ParamBuilder) Options(opts ...string) *ParamBuilder {
	return p.attr(kdata.AttrOptions, kdata.NewVectorString(opts))
}

func (p *ParamBuilder) MinInc(v float64) *ParamBuilder {
	return p.attr(kdata.AttrMin, kdata.NewDouble(v))
}

func (p *ParamBuilder) MaxInc(v float64) *ParamBuilder {
	return p.attr(kdata.AttrMax, kdata.NewDouble(v))
}

func (p *ParamBuilder) MinExc(v float64) *ParamBuilder {
	return p.attr(kdata.AttrMinExc, kdata.NewDouble(v))
}

func (p *ParamBuilder) MaxExc(v float64) *ParamBuilder {
	return p.attr(kdata.AttrMaxExc, kdata.NewDouble(v))
}

func (p *ParamBuilder) AllowedStates(states ...string) *ParamBuilder {
	return p.attr(kdata.AttrAllowedStates, kdata.NewVectorString(states))
}

func (p *ParamBuilder) Unit(unit string) *ParamBuilder {
	return p.attr(kdata.AttrUnit, kdata.NewString(unit))
}

func (p *ParamBuilder) MetricPrefix(prefix string) *ParamBuilder {
	return p.attr(kdata.AttrMetricPrefix, kdata.NewString(prefix))
}

func (p *ParamBuilder) RequiredAccessLevel(level string) *ParamBuilder {
	return p.attr(kdata.AttrRequiredAccessLvl, kdata.NewString(level))
}

func (p *ParamBuilder) Tags(tags ...string) *ParamBuilder {
	return p.attr(kdata.AttrTags, kdata.NewVectorString(tags))
}

func (p *ParamBuilder) DisplayType(dt string) *ParamBuilder {
	return p.attr(kdata.AttrDisplayType, kdata.NewString(dt))
}

func (p *ParamBuilder) Alias(v kdata.Value) *ParamBuilder {
	return p.attr(kdata.AttrAlias, v)
}

func (p *ParamBuilder) RowSchema(s *kdata.Schema) *ParamBuilder {
	return p.attr(kdata.AttrRowSchema, kdata.SchemaValue(s))
}

// Commit returns to the parent Builder to start the next parameter.
func (p *ParamBuilder) Commit() *Builder {
	_ = p.valueType
	return p.b
}
