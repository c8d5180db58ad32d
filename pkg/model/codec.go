// Tagged JSON encoding of trace configurations
// Scalars use either the structured {"gbps","bps"} / {"secs","nanos"} form or human strings
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/andrewh/netem-trace/pkg/unit"
)

// Encoding selects how bandwidth and duration fields are written and read.
// One document always uses a single encoding.
type Encoding int

const (
	// Structured writes {"gbps":0,"bps":12000000} and {"secs":1,"nanos":0}.
	Structured Encoding = iota
	// Human writes "12Mbps" and "1s".
	Human
)

func (e Encoding) String() string {
	switch e {
	case Structured:
		return "structured"
	case Human:
		return "human"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding accepts "structured" or "human".
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "structured", "":
		return Structured, nil
	case "human":
		return Human, nil
	default:
		return 0, fmt.Errorf("unknown encoding %q, supported: structured, human", s)
	}
}

// Codec encodes and decodes tagged configuration documents of the form
// {"<Tag>": {field: value, ...}}.
type Codec struct {
	Encoding Encoding
}

// NewCodec returns a codec for the given scalar encoding.
func NewCodec(enc Encoding) *Codec {
	return &Codec{Encoding: enc}
}

// Marshal encodes cfg as a compact tagged JSON object. Unset fields are omitted.
func (c *Codec) Marshal(cfg Config) ([]byte, error) {
	body, err := c.marshalBody(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cfg.Tag(), err)
	}
	tag, err := json.Marshal(cfg.Tag())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.Write(tag)
	buf.WriteByte(':')
	buf.Write(body)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Codec) marshalBody(cfg Config) ([]byte, error) {
	if m, ok := cfg.(json.Marshaler); ok {
		return m.MarshalJSON()
	}

	f := &Fields{codec: c}
	cfg.Describe(f)
	if f.err != nil {
		return nil, f.err
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f.out {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(fld.name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(fld.raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalBw decodes a tagged bandwidth configuration.
func (c *Codec) UnmarshalBw(data []byte) (BwConfig, error) {
	return Decode(c, BwConfigs, data)
}

// UnmarshalDelay decodes a tagged delay configuration.
func (c *Codec) UnmarshalDelay(data []byte) (DelayConfig, error) {
	return Decode(c, DelayConfigs, data)
}

// UnmarshalLoss decodes a tagged loss configuration.
func (c *Codec) UnmarshalLoss(data []byte) (LossConfig, error) {
	return Decode(c, LossConfigs, data)
}

// UnmarshalDuplicate decodes a tagged duplication configuration.
func (c *Codec) UnmarshalDuplicate(data []byte) (DuplicateConfig, error) {
	return Decode(c, DuplicateConfigs, data)
}

// UnmarshalDelayPerPacket decodes a tagged per-packet delay configuration.
func (c *Codec) UnmarshalDelayPerPacket(data []byte) (DelayPerPacketConfig, error) {
	return Decode(c, DelayPerPacketConfigs, data)
}

// Decode resolves the tag of a tagged document through reg and decodes the body
// into a fresh configuration. Absent fields stay unset so that defaults apply at
// build time. Errors quote the offending part of the input.
func Decode[C Config](c *Codec, reg *Registry[C], data []byte) (C, error) {
	var zero C

	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return zero, fmt.Errorf("decode %s config %s: %w", reg.Kind(), snippet(data), err)
	}
	if len(outer) != 1 {
		return zero, fmt.Errorf("decode %s config %s: expected exactly one type tag, got %d", reg.Kind(), snippet(data), len(outer))
	}

	for tag, body := range outer {
		cfg, err := reg.New(tag)
		if err != nil {
			return zero, fmt.Errorf("decode %s config %s: %w", reg.Kind(), snippet(data), err)
		}
		if err := c.unmarshalBody(cfg, body); err != nil {
			return zero, fmt.Errorf("decode %s %s: %w", tag, snippet(body), err)
		}
		return cfg, nil
	}
	return zero, nil
}

func (c *Codec) unmarshalBody(cfg Config, body json.RawMessage) error {
	if u, ok := cfg.(json.Unmarshaler); ok {
		return u.UnmarshalJSON(body)
	}

	var in map[string]json.RawMessage
	if err := json.Unmarshal(body, &in); err != nil {
		return err
	}

	f := &Fields{codec: c, decoding: true, in: in, seen: make(map[string]bool, len(in))}
	cfg.Describe(f)
	if f.err != nil {
		return f.err
	}

	var unknown []string
	for name := range in {
		if !f.seen[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return fmt.Errorf("unknown field %q", unknown[0])
	}
	return nil
}

// Fields walks the serialisable fields of a configuration. The same Describe
// call drives encoding and decoding, so field names, order and optionality are
// declared once per type.
type Fields struct {
	codec    *Codec
	decoding bool
	in       map[string]json.RawMessage
	seen     map[string]bool
	out      []encodedField
	err      error
}

type encodedField struct {
	name string
	raw  json.RawMessage
}

func (f *Fields) fail(name string, raw json.RawMessage, err error) {
	if f.err != nil {
		return
	}
	if raw != nil {
		f.err = fmt.Errorf("field %q (%s): %w", name, snippet(raw), err)
		return
	}
	f.err = fmt.Errorf("field %q: %w", name, err)
}

func (f *Fields) lookup(name string) (json.RawMessage, bool) {
	if f.err != nil {
		return nil, false
	}
	raw, ok := f.in[name]
	if !ok {
		return nil, false
	}
	f.seen[name] = true
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (f *Fields) emit(name string, v any) {
	if f.err != nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		f.fail(name, nil, err)
		return
	}
	f.out = append(f.out, encodedField{name: name, raw: raw})
}

// Bandwidth declares an optional bandwidth field.
func (f *Fields) Bandwidth(name string, p **unit.Bandwidth) {
	if !f.decoding {
		if *p == nil {
			return
		}
		if f.codec.Encoding == Human {
			f.emit(name, (**p).String())
		} else {
			f.emit(name, (**p).Structured())
		}
		return
	}

	raw, ok := f.lookup(name)
	if !ok {
		return
	}
	bw, err := f.codec.decodeBandwidth(raw)
	if err != nil {
		f.fail(name, raw, err)
		return
	}
	*p = &bw
}

// Duration declares an optional duration field.
func (f *Fields) Duration(name string, p **time.Duration) {
	if !f.decoding {
		if *p == nil {
			return
		}
		if f.codec.Encoding == Human {
			f.emit(name, unit.FormatDuration(**p))
		} else {
			f.emit(name, unit.NewStructuredDuration(**p))
		}
		return
	}

	raw, ok := f.lookup(name)
	if !ok {
		return
	}
	d, err := f.codec.decodeDuration(raw)
	if err != nil {
		f.fail(name, raw, err)
		return
	}
	*p = &d
}

// Float declares an optional float field.
func (f *Fields) Float(name string, p **float64) {
	optional(f, name, p)
}

// Uint64 declares an optional unsigned integer field.
func (f *Fields) Uint64(name string, p **uint64) {
	optional(f, name, p)
}

// Bool declares an optional boolean field.
func (f *Fields) Bool(name string, p **bool) {
	optional(f, name, p)
}

// Floats declares an optional list of floats. A nil slice is omitted.
func (f *Fields) Floats(name string, p *[]float64) {
	if !f.decoding {
		if *p != nil {
			f.emit(name, *p)
		}
		return
	}
	raw, ok := f.lookup(name)
	if !ok {
		return
	}
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil {
		f.fail(name, raw, err)
		return
	}
	if v == nil {
		v = []float64{}
	}
	*p = v
}

// Int declares an integer field that is always written. An absent field decodes as zero.
func (f *Fields) Int(name string, p *int) {
	if !f.decoding {
		f.emit(name, *p)
		return
	}
	raw, ok := f.lookup(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, p); err != nil {
		f.fail(name, raw, err)
	}
}

// Value declares a field carrying its own JSON encoding, independent of the
// codec's scalar encoding. It is skipped on output when omit is true.
func (f *Fields) Value(name string, v any, omit bool) {
	if !f.decoding {
		if !omit {
			f.emit(name, v)
		}
		return
	}
	raw, ok := f.lookup(name)
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, v); err != nil {
		f.fail(name, raw, err)
	}
}

// PatternField declares a list of nested tagged configurations resolved through reg.
// The list is always written; an empty list decodes as nil.
func PatternField[C Config](f *Fields, reg *Registry[C], name string, p *[]C) {
	if !f.decoding {
		items := make([]json.RawMessage, 0, len(*p))
		for i, cfg := range *p {
			raw, err := f.codec.Marshal(cfg)
			if err != nil {
				f.fail(fmt.Sprintf("%s[%d]", name, i), nil, err)
				return
			}
			items = append(items, raw)
		}
		f.emit(name, items)
		return
	}

	raw, ok := f.lookup(name)
	if !ok {
		return
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		f.fail(name, raw, err)
		return
	}
	if len(items) == 0 {
		*p = nil
		return
	}
	out := make([]C, 0, len(items))
	for i, item := range items {
		cfg, err := Decode(f.codec, reg, item)
		if err != nil {
			f.fail(fmt.Sprintf("%s[%d]", name, i), nil, err)
			return
		}
		out = append(out, cfg)
	}
	*p = out
}

func optional[T any](f *Fields, name string, p **T) {
	if !f.decoding {
		if *p != nil {
			f.emit(name, **p)
		}
		return
	}
	raw, ok := f.lookup(name)
	if !ok {
		return
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		f.fail(name, raw, err)
		return
	}
	*p = v
}

func (c *Codec) decodeBandwidth(raw json.RawMessage) (unit.Bandwidth, error) {
	if c.Encoding == Human {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errors.New("expected a bandwidth string like \"12Mbps\"")
		}
		return unit.ParseBandwidth(s)
	}
	var s unit.StructuredBandwidth
	if err := strictUnmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected {\"gbps\":..,\"bps\":..}: %w", err)
	}
	return s.Bandwidth(), nil
}

func (c *Codec) decodeDuration(raw json.RawMessage) (time.Duration, error) {
	if c.Encoding == Human {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errors.New("expected a duration string like \"1s\"")
		}
		return unit.ParseDuration(s)
	}
	var s unit.StructuredDuration
	if err := strictUnmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("expected {\"secs\":..,\"nanos\":..}: %w", err)
	}
	return s.Duration()
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

const snippetLimit = 120

func snippet(raw []byte) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) > snippetLimit {
		return s[:snippetLimit] + "..."
	}
	return s
}
