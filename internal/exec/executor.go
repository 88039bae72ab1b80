// Package exec drives a compiled plan: dequeues work items, invokes node
// runtimes, and routes their emissions along the plan's wires. One Executor
// runs one flow activation at a time; concurrent runs are independent,
// each owning its own work queue, cancellation source, and trace buffer.
package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowrt/flowrt/internal/compiler"
	"github.com/flowrt/flowrt/internal/envelope"
	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/tracer"
	"github.com/flowrt/flowrt/internal/tracestore/pg"
	"github.com/flowrt/flowrt/internal/transport"
)

// Status is the terminal outcome of one execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// Options configures one call to Execute.
type Options struct {
	RunID         string
	Timeout       time.Duration
	MaxMessages   int
	StopOnError   bool
	ParentTraceID string
}

// Result summarizes one execution.
type Result struct {
	RunID          string
	Status         Status
	Error          string
	MessagesProcessed int
	NodesSucceeded int
	NodesFailed    int
	NodesSkipped   int
	Traces         []tracer.Record
}

type workItem struct {
	nodeID  string
	port    string
	message *envelope.Envelope
}

// Executor holds the collaborators every node Context needs: tag access,
// historian, script host, and an optional shared cross-activation store.
// A fresh Executor is usually shared across runs; it carries no per-run
// state itself.
type Executor struct {
	Tags      node.TagReader
	TagWriter node.TagWriter
	Historian node.HistorianWriter
	Script    node.ScriptHost
	Shared    node.SharedStore
	Logger    node.Logger
	Tracer    *tracer.Tracer
	Now       func() time.Time

	// Transport, if set, publishes tag writes (via node.Context.TagPub) and
	// a run-summary once a run reaches a terminal state. Optional egress;
	// the engine's own correctness never depends on it.
	Transport *transport.Publisher
	// TraceSink, if set, additionally persists every trace record and the
	// run's terminal summary to Postgres. The in-memory Tracer remains the
	// sole authoritative store the spec requires.
	TraceSink *pg.Sink

	DisableWrites bool
}

// Execute runs plan starting at startNodeID with initialMessage injected on
// its "input" port, honoring the given options and external cancel signal.
func (e *Executor) Execute(ctx context.Context, plan *compiler.Plan, startNodeID string, initialMessage *envelope.Envelope, opts Options) *Result {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	maxMessages := opts.MaxMessages
	if maxMessages <= 0 {
		maxMessages = 1000
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	result := &Result{RunID: runID, Status: StatusSuccess}

	queue := []workItem{{nodeID: startNodeID, port: flow.PortInput, message: initialMessage}}

	for len(queue) > 0 {
		if maxMessagesReached(result.MessagesProcessed, maxMessages) {
			result.Status = StatusFailed
			result.Error = "message limit reached"
			break
		}

		select {
		case <-runCtx.Done():
			result.Status = StatusTimeout
			result.Error = runCtx.Err().Error()
			queue = nil
			continue
		default:
		}

		item := queue[0]
		queue = queue[1:]
		result.MessagesProcessed++

		compiled, ok := plan.Nodes[item.nodeID]
		if !ok {
			if e.Logger != nil {
				e.Logger.Warn("work item references unknown node, skipping", "run_id", runID, "node_id", item.nodeID)
			}
			result.NodesSkipped++
			continue
		}

		emitter := &node.Emitter{}
		rc := &node.Context{
			RunID:         runID,
			FlowID:        plan.FlowID,
			NodeID:        compiled.Def.ID,
			NodeType:      compiled.Def.Type,
			Config:        compiled.Def.Config,
			Message:       item.message,
			InputPort:     item.port,
			Descriptor:    &compiled.Descriptor,
			Now:           e.now,
			Logger:        e.Logger,
			Emitter:       emitter,
			Tags:          e.Tags,
			TagWriter:     e.TagWriter,
			Historian:     e.Historian,
			Script:        e.Script,
			Shared:        e.Shared,
			DisableWrites: e.DisableWrites,
		}
		if e.Transport != nil {
			rc.TagPub = e.Transport
		}

		started := e.now()
		runErr := e.invoke(runCtx, compiled.Runtime, rc)
		ended := e.now()

		record := tracer.Record{
			RunID:          runID,
			FlowID:         plan.FlowID,
			NodeID:         compiled.Def.ID,
			NodeType:       compiled.Def.Type,
			MessageID:      item.message.MessageID,
			CorrelationID:  item.message.CorrelationID,
			StartedAt:      started,
			EndedAt:        ended,
			EmittedCount:   emitter.Count(),
			InputSnapshot:  item.message.Payload,
			ParentTraceID:  opts.ParentTraceID,
		}

		if runErr != nil {
			record.Status = tracer.StatusFailed
			record.Error = runErr.Error()
			e.persistTrace(ctx, record)
			result.NodesFailed++

			if runCtx.Err() != nil {
				result.Status = StatusTimeout
				result.Error = runCtx.Err().Error()
				break
			}

			if opts.StopOnError {
				result.Status = StatusFailed
				result.Error = runErr.Error()
				break
			}

			if compiled.Descriptor.HasOutputPort(flow.PortError) {
				errEnvelope := item.message.Derive(map[string]interface{}{
					"error": runErr.Error(),
					"stack": fmt.Sprintf("%+v", runErr),
				}, compiled.Def.ID, flow.PortError)
				for _, w := range plan.OutgoingFor(compiled.Def.ID, flow.PortError) {
					queue = append(queue, workItem{nodeID: w.TargetNodeID, port: w.TargetPort, message: errEnvelope})
				}
			}
			continue
		}

		record.Status = tracer.StatusSuccess
		if len(emitter.Emissions()) > 0 {
			record.OutputSnapshot = emitter.Emissions()[len(emitter.Emissions())-1].Payload
		}
		e.persistTrace(ctx, record)
		result.NodesSucceeded++

		for _, emission := range emitter.Emissions() {
			outEnvelope := item.message.Derive(emission.Payload, compiled.Def.ID, emission.Port)
			for _, w := range plan.OutgoingFor(compiled.Def.ID, emission.Port) {
				queue = append(queue, workItem{nodeID: w.TargetNodeID, port: w.TargetPort, message: outEnvelope})
			}
		}
	}

	if e.Tracer != nil {
		result.Traces = e.Tracer.Traces(runID)
	}

	e.finishRun(ctx, plan.FlowID, result)

	return result
}

// persistTrace records a trace in the in-memory Tracer (authoritative) and,
// if a durable sink is configured, additionally persists it to Postgres. A
// sink failure is logged and never affects the run's outcome.
func (e *Executor) persistTrace(ctx context.Context, record tracer.Record) {
	if e.Tracer != nil {
		e.Tracer.Record(record)
	}
	if e.TraceSink != nil {
		if err := e.TraceSink.WriteTrace(ctx, record); err != nil && e.Logger != nil {
			e.Logger.Warn("trace sink write failed", "run_id", record.RunID, "node_id", record.NodeID, "error", err)
		}
	}
}

// finishRun persists the run's terminal summary to the durable trace sink
// and publishes it over the status transport, when either is configured.
func (e *Executor) finishRun(ctx context.Context, flowID string, result *Result) {
	if e.TraceSink != nil {
		summary := pg.RunSummary{
			RunID:             result.RunID,
			FlowID:            flowID,
			Status:            string(result.Status),
			MessagesProcessed: result.MessagesProcessed,
			NodesSucceeded:    result.NodesSucceeded,
			NodesFailed:       result.NodesFailed,
			NodesSkipped:      result.NodesSkipped,
			Error:             result.Error,
		}
		if err := e.TraceSink.WriteRunSummary(ctx, summary); err != nil && e.Logger != nil {
			e.Logger.Warn("trace sink run summary failed", "run_id", result.RunID, "error", err)
		}
	}

	if e.Transport != nil {
		summary := transport.RunSummary{
			RunID:             result.RunID,
			Status:            string(result.Status),
			MessagesProcessed: result.MessagesProcessed,
			NodesFailed:       result.NodesFailed,
			Error:             result.Error,
		}
		if err := e.Transport.PublishRunSummary(ctx, flowID, summary); err != nil && e.Logger != nil {
			e.Logger.Warn("run summary publish failed", "run_id", result.RunID, "flow_id", flowID, "error", err)
		}
	}
}

func maxMessagesReached(processed, max int) bool {
	return processed >= max
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// invoke runs a single activation, recovering from a runtime panic and
// turning it into an error so one misbehaving node can never crash the
// process.
func (e *Executor) invoke(ctx context.Context, rt node.Runtime, rc *node.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node panicked: %v", r)
		}
	}()
	return rt.Execute(ctx, rc)
}
