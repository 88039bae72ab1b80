// Package node declares the contract every node behavior implements and the
// execution context the flow executor hands to it. Concrete behaviors live
// under internal/nodes/...; the registry (internal/registry) maps type keys
// to factories producing values that satisfy Runtime.
package node

import (
	"context"
	"time"

	"github.com/flowrt/flowrt/internal/envelope"
	"github.com/flowrt/flowrt/internal/flow"
)

// Runtime is the single capability every node behavior exposes. A fresh
// Runtime instance is constructed per compilation; any mutable state it
// keeps (a deadband baseline, an EMA accumulator, a timeline buffer) is
// private to that instance and discarded when the owning plan is
// recompiled.
type Runtime interface {
	Execute(ctx context.Context, rc *Context) error
}

// Logger is the narrow logging surface node runtimes and supporting
// components depend on.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// TagQuality is a numeric code accompanying a tag value; 0 is good, any
// non-zero value is bad/uncertain with driver-specific meaning that the
// core preserves but never interprets.
type TagQuality int32

// QualityGood is the only quality value the core itself ever examines.
const QualityGood TagQuality = 0

// TagValue is a snapshot of a single tag's cached state.
type TagValue struct {
	Path      string
	Value     interface{}
	Timestamp time.Time
	Quality   TagQuality
}

// TagReader is the ingress interface embedders provide for reading the
// current value of a tag.
type TagReader interface {
	Get(ctx context.Context, path string) (TagValue, bool, error)
}

// TagWriter is the ingress interface embedders provide for writing tag
// values. Quality and timestamp default to good/now when zero-valued.
type TagWriter interface {
	Put(ctx context.Context, path string, value interface{}, quality TagQuality, timestamp time.Time) error
}

// HistorianWriter is the ingress interface for appending a measurement to
// the historian.
type HistorianWriter interface {
	Write(ctx context.Context, measurement Measurement) error
}

// Measurement is a single historian data point.
type Measurement struct {
	Name      string
	Timestamp time.Time
	Value     float64
	Quality   TagQuality
	Tags      map[string]string
}

// ScriptHost executes sandboxed user source code for the script node
// kinds.
type ScriptHost interface {
	Run(ctx context.Context, source string, input interface{}, state map[string]interface{}) (interface{}, error)
}

// SharedStore is an optional key-value map runtimes may use to pass state
// across activations within a run, independent of node-local state.
type SharedStore interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
}

// TagPublisher is an optional egress hook notified whenever a tag is
// written, independent of the tag cache itself. Embedders that don't run
// an external status bus leave it nil; a failure here never fails the
// node activation that triggered it.
type TagPublisher interface {
	PublishTagValue(ctx context.Context, path string, value interface{}, quality TagQuality) error
}

// Emission is one message a runtime produced on a named output port.
type Emission struct {
	Port    string
	Payload interface{}
}

// Emitter collects the emissions a runtime produces during one activation.
// The executor stamps each emission with the node id and port before
// routing it to downstream wires.
type Emitter struct {
	emissions []Emission
}

// Emit records an emission on the given output port.
func (e *Emitter) Emit(port string, payload interface{}) {
	e.emissions = append(e.emissions, Emission{Port: port, Payload: payload})
}

// Emissions returns the recorded emissions in emit order.
func (e *Emitter) Emissions() []Emission {
	return e.emissions
}

// Count returns the number of emissions recorded so far.
func (e *Emitter) Count() int {
	return len(e.emissions)
}

// Context is the per-activation execution context passed to a runtime's
// Execute method. It bundles everything a node behavior may need: the
// compiled node, the inbound message, routing-independent collaborators
// (tag store, historian, script host, shared context), and the emitter the
// runtime must use to produce output messages.
type Context struct {
	RunID         string
	FlowID        string
	NodeID        string
	NodeType      string
	Config        map[string]interface{}
	Message       *envelope.Envelope
	InputPort     string
	Descriptor    *flow.Descriptor
	Now           func() time.Time
	Logger        Logger
	Emitter       *Emitter
	Tags          TagReader
	TagWriter     TagWriter
	Historian     HistorianWriter
	Script        ScriptHost
	Shared        SharedStore
	TagPub        TagPublisher
	DisableWrites bool
}

// Emit is a convenience forwarding to the embedded emitter.
func (c *Context) Emit(port string, payload interface{}) {
	c.Emitter.Emit(port, payload)
}

// Derive produces a new envelope from the context's inbound message,
// stamped as originating from this node (the executor overwrites
// source port per-emission when routing).
func (c *Context) Derive(payload interface{}) *envelope.Envelope {
	return c.Message.Derive(payload, c.NodeID, "")
}
