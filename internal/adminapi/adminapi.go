// Package adminapi exposes the core's egress surface over HTTP: compile,
// execute, instantiate_template, and trace/historian queries. It is a thin
// translation layer — every handler just calls straight through to
// compiler.Compile, exec.Executor.Execute, template.Instantiate, the
// tracer, or the historian — never an alternate implementation of engine
// semantics. Grounded on the teacher's cmd/orchestrator/handlers package,
// which wraps the same core operations behind labstack/echo.
package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/flowrt/flowrt/internal/compiler"
	"github.com/flowrt/flowrt/internal/envelope"
	"github.com/flowrt/flowrt/internal/exec"
	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/flowstore"
	"github.com/flowrt/flowrt/internal/historian"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/registry"
	"github.com/flowrt/flowrt/internal/template"
	"github.com/flowrt/flowrt/internal/tracer"
	"github.com/flowrt/flowrt/internal/tracestore/pg"
)

// API holds every collaborator a handler needs.
type API struct {
	Registry  *registry.Registry
	Executor  *exec.Executor
	Tracer    *tracer.Tracer
	Historian *historian.Historian
	Store     *flowstore.Store
	Logger    node.Logger

	// TraceSink, if set, backs a trace-by-run lookup that misses the
	// in-memory Tracer (e.g. after a process restart). The in-memory
	// Tracer is always consulted first and remains authoritative.
	TraceSink *pg.Sink
}

// NewEcho builds an *echo.Echo with every route mounted and echo's recover
// and request-id middleware attached.
func (a *API) NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/healthz", a.health)
	e.GET("/node-types", a.listNodeTypes)

	e.POST("/flows", a.saveFlow)
	e.GET("/flows/:id", a.getFlow)
	e.GET("/flows", a.listFlows)
	e.PATCH("/flows/:id", a.patchFlow)
	e.POST("/flows/:id/compile", a.compileFlow)
	e.POST("/flows/:id/execute", a.executeFlow)

	e.POST("/templates/instantiate", a.instantiateTemplate)

	e.GET("/traces/:run_id", a.tracesForRun)
	e.GET("/traces", a.allTraces)
	e.POST("/traces/purge", a.purgeTraces)

	e.GET("/historian/measurements", a.listMeasurements)
	e.GET("/historian/:measurement/query", a.queryHistorian)

	return e
}

func (a *API) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) listNodeTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Registry.All())
}

func (a *API) saveFlow(c echo.Context) error {
	var def flow.Definition
	if err := c.Bind(&def); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid flow definition")
	}
	if err := a.Store.Save(&def); err != nil {
		a.Logger.Error("save flow failed", "flow_id", def.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save flow")
	}
	return c.JSON(http.StatusCreated, def)
}

func (a *API) getFlow(c echo.Context) error {
	def, err := a.Store.Load(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "flow not found")
	}
	return c.JSON(http.StatusOK, def)
}

func (a *API) listFlows(c echo.Context) error {
	ids, err := a.Store.List()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list flows")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"flows": ids})
}

func (a *API) patchFlow(c echo.Context) error {
	id := c.Param("id")
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patch body")
	}
	patched, err := a.Store.ApplyPatch(id, body)
	if err != nil {
		a.Logger.Warn("apply patch failed", "flow_id", id, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, patched)
}

func (a *API) compileFlow(c echo.Context) error {
	id := c.Param("id")
	def, err := a.Store.Load(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "flow not found")
	}

	plan, err := compiler.Compile(def, a.Registry)
	if err != nil {
		a.Logger.Warn("compile failed", "flow_id", id, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"flow_id":  plan.FlowID,
		"nodes":    len(plan.Nodes),
		"triggers": plan.Triggers,
	})
}

type executeRequest struct {
	StartNodeID string                 `json:"start_node_id"`
	Payload     map[string]interface{} `json:"payload"`
	TimeoutMS   int                    `json:"timeout_ms"`
	MaxMessages int                    `json:"max_messages"`
	StopOnError bool                   `json:"stop_on_error"`
}

func (a *API) executeFlow(c echo.Context) error {
	id := c.Param("id")
	var req executeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if req.StartNodeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "start_node_id is required")
	}

	def, err := a.Store.Load(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "flow not found")
	}

	plan, err := compiler.Compile(def, a.Registry)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg := envelope.New(req.Payload)
	opts := exec.Options{
		Timeout:     time.Duration(req.TimeoutMS) * time.Millisecond,
		MaxMessages: req.MaxMessages,
		StopOnError: req.StopOnError,
	}

	result := a.Executor.Execute(c.Request().Context(), plan, req.StartNodeID, msg, opts)
	return c.JSON(http.StatusOK, result)
}

type instantiateRequest struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

func (a *API) instantiateTemplate(c echo.Context) error {
	var body struct {
		Template instantiateTemplateBody `json:"template"`
		Request  instantiateRequest      `json:"request"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	t := &template.Template{
		Parameters: body.Template.Parameters,
		Nodes:      body.Template.Nodes,
		Wires:      body.Template.Wires,
	}

	def, err := template.Instantiate(t, body.Request.Name, body.Request.Parameters)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, def)
}

// instantiateTemplateBody mirrors template.Template for JSON binding.
type instantiateTemplateBody struct {
	Parameters []template.Parameter `json:"parameters"`
	Nodes      []flow.NodeDef       `json:"nodes"`
	Wires      []flow.Wire          `json:"wires"`
}

func (a *API) tracesForRun(c echo.Context) error {
	runID := c.Param("run_id")

	traces := a.Tracer.Traces(runID)
	if len(traces) == 0 && a.TraceSink != nil {
		fromSink, err := a.TraceSink.TracesForRun(c.Request().Context(), runID)
		if err != nil {
			a.Logger.Warn("trace sink lookup failed", "run_id", runID, "error", err)
		} else {
			traces = fromSink
		}
	}
	return c.JSON(http.StatusOK, traces)
}

func (a *API) allTraces(c echo.Context) error {
	return c.JSON(http.StatusOK, a.Tracer.All())
}

func (a *API) purgeTraces(c echo.Context) error {
	var body struct {
		Before time.Time `json:"before"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	a.Tracer.Purge(body.Before)
	return c.NoContent(http.StatusNoContent)
}

func (a *API) listMeasurements(c echo.Context) error {
	names, err := a.Historian.Measurements()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list measurements")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"measurements": names})
}

func (a *API) queryHistorian(c echo.Context) error {
	name := c.Param("measurement")

	start, err := parseTimeParam(c, "start")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid start")
	}
	end, err := parseTimeParam(c, "end")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid end")
	}

	agg := historian.Aggregation(c.QueryParam("agg"))
	if agg == "" {
		agg = historian.AggAvg
	}

	maxPoints := 100
	if mp := c.QueryParam("max_points"); mp != "" {
		if parsed, err := parsePositiveInt(mp); err == nil {
			maxPoints = parsed
		}
	}

	result, err := a.Historian.Query(c.Request().Context(), name, start, end, agg, maxPoints)
	if err != nil {
		a.Logger.Error("historian query failed", "measurement", name, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "query failed")
	}
	return c.JSON(http.StatusOK, result)
}
