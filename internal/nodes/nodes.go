// Package nodes is the single place that wires every node kind package
// into a registry. cmd/flowrt (and any embedder) calls nodes.RegisterAll
// once at boot, after which the registry is read-only.
package nodes

import (
	"github.com/flowrt/flowrt/internal/nodes/control"
	"github.com/flowrt/flowrt/internal/nodes/dataops"
	"github.com/flowrt/flowrt/internal/nodes/httpreq"
	"github.com/flowrt/flowrt/internal/nodes/logicops"
	"github.com/flowrt/flowrt/internal/nodes/mathops"
	"github.com/flowrt/flowrt/internal/nodes/output"
	"github.com/flowrt/flowrt/internal/nodes/scriptnodes"
	"github.com/flowrt/flowrt/internal/nodes/sources"
	"github.com/flowrt/flowrt/internal/nodes/statemachine"
	"github.com/flowrt/flowrt/internal/nodes/storage"
	"github.com/flowrt/flowrt/internal/nodes/tagio"
	"github.com/flowrt/flowrt/internal/registry"
)

// RegisterAll installs every built-in node kind into reg. Order does not
// matter: registration is a simple idempotent map insert per type key.
func RegisterAll(reg *registry.Registry) {
	sources.Install(reg)
	tagio.Install(reg)
	mathops.Install(reg)
	logicops.Install(reg)
	dataops.Install(reg)
	control.Install(reg)
	statemachine.Install(reg)
	httpreq.Install(reg)
	scriptnodes.Install(reg)
	storage.Install(reg)
	output.Install(reg)
}
