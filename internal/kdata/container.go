// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kdata

import (
	"strings"

	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// PathSeparator splits nested paths ("device.node.leaf") for
// Container.GetPath and Container.SetPath (spec §3).
const PathSeparator = "."

// MaxKeyLen is the wire limit on a single key: the length prefix is
// one byte (spec §3, §4.2).
const MaxKeyLen = 255

// AttributeMap is the ordered string→Value map attached to each
// Container entry, used for per-leaf metadata such as timestamps and
// units.
type AttributeMap struct {
	keys   []string
	index  map[string]int
	values []Value
}

func NewAttributeMap() *AttributeMap {
	return &AttributeMap{index: make(map[string]int)}
}

func (a *AttributeMap) Set(key string, v Value) {
	if i, ok := a.index[key]; ok {
		a.values[i] = v
		return
	}
	a.index[key] = len(a.keys)
	a.keys = append(a.keys, key)
	a.values = append(a.values, v)
}

func (a *AttributeMap) Get(key string) (Value, bool) {
	i, ok := a.index[key]
	if !ok {
		return Value{}, false
	}
	return a.values[i], true
}

func (a *AttributeMap) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

func (a *AttributeMap) Len() int { return len(a.keys) }

func (a *AttributeMap) Equal(other *AttributeMap) bool {
	if a.Len() != other.Len() {
		return false
	}
	for i, k := range a.keys {
		ov, ok := other.Get(k)
		if !ok || !a.values[i].Equal(ov) {
			return false
		}
	}
	return true
}

func (a *AttributeMap) clone() *AttributeMap {
	c := NewAttributeMap()
	for i, k := range a.keys {
		c.Set(k, a.values[i])
	}
	return c
}

type node struct {
	key   string
	value Value
	attrs *AttributeMap
}

// Container is an ordered mapping from string key to a typed Value,
// preserving insertion order, with a per-entry attribute map (spec
// §3). Strict controls key-character validation: Karabo's "strict"
// registration path rejects non-conforming keys outright, the
// "non-strict" path (used e.g. when mirroring externally supplied
// names) only rejects empty keys and enforces the length limit.
type Container struct {
	Strict bool
	nodes  []node
	index  map[string]int
}

func NewContainer() *Container {
	return &Container{Strict: true, index: make(map[string]int)}
}

func validateKey(key string, strict bool) error {
	if len(key) == 0 {
		return kerrors.NewLogicError("container key must not be empty")
	}
	if len(key) > MaxKeyLen {
		return kerrors.NewEncodingError("key %q exceeds %d bytes", key, MaxKeyLen)
	}
	if !strict {
		return nil
	}
	first := key[0]
	if !(first == '_' || (first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return kerrors.NewLogicError("key %q must start with a letter or underscore", key)
	}
	for i := 1; i < len(key); i++ {
		c := key[i]
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !ok {
			return kerrors.NewLogicError("key %q contains forbidden character %q", key, c)
		}
	}
	return nil
}

// Set inserts or overwrites the value at key, preserving the
// position of an existing key. It rejects a container value that
// would nest itself (design note: cyclic structures are forbidden).
func (c *Container) Set(key string, v Value) error {
	if err := validateKey(key, c.Strict); err != nil {
		return err
	}
	if nested, ok := v.AsContainer(); ok && nested == c {
		return kerrors.NewLogicError("container cannot nest itself under key %q", key)
	}
	if i, ok := c.index[key]; ok {
		c.nodes[i].value = v
		return nil
	}
	c.index[key] = len(c.nodes)
	c.nodes = append(c.nodes, node{key: key, value: v})
	return nil
}

// MustSet panics on a validation error; used for literal construction
// in tests and demo code where the key is known good.
func (c *Container) MustSet(key string, v Value) *Container {
	if err := c.Set(key, v); err != nil {
		panic(err)
	}
	return c
}

func (c *Container) Get(key string) (Value, bool) {
	i, ok := c.index[key]
	if !ok {
		return Value{}, false
	}
	return c.nodes[i].value, true
}

func (c *Container) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

func (c *Container) Del(key string) {
	i, ok := c.index[key]
	if !ok {
		return
	}
	c.nodes = append(c.nodes[:i], c.nodes[i+1:]...)
	delete(c.index, key)
	for k, idx := range c.index {
		if idx > i {
			c.index[k] = idx - 1
		}
	}
}

func (c *Container) Keys() []string {
	out := make([]string, len(c.nodes))
	for i, n := range c.nodes {
		out[i] = n.key
	}
	return out
}

func (c *Container) Len() int { return len(c.nodes) }

func (c *Container) attributesFor(key string, create bool) *AttributeMap {
	i, ok := c.index[key]
	if !ok {
		return nil
	}
	if c.nodes[i].attrs == nil && create {
		c.nodes[i].attrs = NewAttributeMap()
	}
	return c.nodes[i].attrs
}

// SetAttribute attaches per-leaf metadata, e.g. a timestamp or unit.
func (c *Container) SetAttribute(key, attrKey string, v Value) error {
	am := c.attributesFor(key, true)
	if am == nil {
		return kerrors.NewLogicError("cannot set attribute on missing key %q", key)
	}
	am.Set(attrKey, v)
	return nil
}

func (c *Container) GetAttribute(key, attrKey string) (Value, bool) {
	am := c.attributesFor(key, false)
	if am == nil {
		return Value{}, false
	}
	return am.Get(attrKey)
}

func (c *Container) Attributes(key string) *AttributeMap {
	am := c.attributesFor(key, false)
	if am == nil {
		return NewAttributeMap()
	}
	return am
}

// GetPath resolves a dotted path through nested containers.
func (c *Container) GetPath(path string) (Value, bool) {
	parts := strings.Split(path, PathSeparator)
	cur := c
	for i, p := range parts {
		v, ok := cur.Get(p)
		if !ok {
			return Value{}, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		nested, ok := v.AsContainer()
		if !ok {
			return Value{}, false
		}
		cur = nested
	}
	return Value{}, false
}

// SetPath writes through a dotted path, creating intermediate
// containers as needed.
func (c *Container) SetPath(path string, v Value) error {
	parts := strings.Split(path, PathSeparator)
	cur := c
	for i, p := range parts {
		if i == len(parts)-1 {
			return cur.Set(p, v)
		}
		existing, ok := cur.Get(p)
		if !ok {
			nested := NewContainer()
			nested.Strict = c.Strict
			if err := cur.Set(p, ContainerValue(nested)); err != nil {
				// Set fails here when the path component is not a valid
				// key; containers created earlier in the walk stay in place.
				return err
			}
			cur = nested
			continue
		}
		nested, ok := existing.AsContainer()
		if !ok {
			return kerrors.NewLogicError("path component %q is not a container", p)
		}
		cur = nested
	}
	return nil
}

// Equal implements value+attribute equality used by the round-trip
// law (spec §8): same keys in the same order, same values, same
// attributes.
func (c *Container) Equal(other *Container) bool {
	if other == nil || c.Len() != other.Len() {
		return false
	}
	for i, n := range c.nodes {
		if other.nodes[i].key != n.key {
			return false
		}
		if !n.value.Equal(other.nodes[i].value) {
			return false
		}
		a, b := n.attrs, other.nodes[i].attrs
		switch {
		case a == nil && b == nil:
		case a == nil:
			if b.Len() != 0 {
				return false
			}
		case b == nil:
			if a.Len() != 0 {
				return false
			}
		default:
			if !a.Equal(b) {
				return false
			}
		}
	}
	return true
}

// Clone produces a deep-enough copy for mutation isolation: nested
// containers are cloned recursively, byte-array/vector leaves are
// shared as Go slices normally are (copy-on-write is out of scope).
func (c *Container) Clone() *Container {
	clone := NewContainer()
	clone.Strict = c.Strict
	for _, n := range c.nodes {
		v := n.value
		if nested, ok := v.AsContainer(); ok {
			if v.Type() == TypeContainerPointer {
				v = ContainerPointerValue(nested.Clone())
			} else {
				v = ContainerValue(nested.Clone())
			}
		}
		clone.nodes = append(clone.nodes, node{key: n.key, value: v, attrs: cloneAttrs(n.attrs)})
		clone.index[n.key] = len(clone.nodes) - 1
	}
	return clone
}

func cloneAttrs(a *AttributeMap) *AttributeMap {
	if a == nil {
		return nil
	}
	return a.clone()
}

// SequenceKey is the conventional wrapper key save_sequence/
// load_sequence use (spec §4.2).
const SequenceKey = "KRB_Sequence"

// SaveSequence wraps a slice of Containers under the conventional
// KRB_Sequence key.
func SaveSequence(seq []*Container) *Container {
	c := NewContainer()
	c.MustSet(SequenceKey, NewVectorContainer(seq))

	return c
}

// LoadSequence unwraps a container produced by SaveSequence, or
// treats a plain container as a one-element sequence.
func LoadSequence(c *Container) []*Container {
	if v, ok := c.Get(SequenceKey); ok {
		if seq, ok := v.AsVectorContainer(); ok {
			return seq
		}
	}
	return []*Container{c}
}
