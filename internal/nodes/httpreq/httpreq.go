// Package httpreq implements the HTTP request node kind. Outbound requests
// are validated by outboundValidator before being dispatched, guarding
// against SSRF and local file access via a malformed or malicious URL.
package httpreq

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/flowrt/flowrt/internal/flow"
	"github.com/flowrt/flowrt/internal/node"
	"github.com/flowrt/flowrt/internal/nodes/nodeutil"
	"github.com/flowrt/flowrt/internal/registry"
)

const (
	minTimeoutMS = 1000
	maxTimeoutMS = 60000
)

// Install registers the HTTP request node kind.
func Install(reg *registry.Registry) {
	reg.Register(flow.Descriptor{
		Type:     "http.request",
		Category: "http",
		Label:    "HTTP Request",
		InputPorts: []flow.Port{
			{Name: flow.PortInput, Direction: flow.DirectionInput},
		},
		OutputPorts: []flow.Port{
			{Name: flow.PortOutput, Direction: flow.DirectionOutput},
			{Name: flow.PortError, Direction: flow.DirectionOutput},
		},
	}, func() node.Runtime { return NewRequest() })
}

// Request dispatches an outbound HTTP call on each activation, reusing one
// validator instance across activations of one compiled node. Calls go
// through client, or through http.DefaultClient when client is nil.
type Request struct {
	validator *outboundValidator
	client    *http.Client
}

// NewRequest builds a Request runtime with its own validator; its client is
// left nil, so calls use http.DefaultClient.
func NewRequest() *Request {
	return &Request{validator: newOutboundValidator()}
}

func (r *Request) Execute(ctx context.Context, rc *node.Context) error {
	url := nodeutil.ConfigString(rc.Config, "url", "")
	if url == "" {
		rc.Emit(flow.PortError, map[string]interface{}{"error": "missing url config"})
		return nil
	}

	if err := r.validator.validate(url); err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}

	method := nodeutil.ConfigString(rc.Config, "method", "GET")
	timeoutMS := nodeutil.ConfigFloat(rc.Config, "timeout_ms", 10000)
	if timeoutMS < minTimeoutMS {
		timeoutMS = minTimeoutMS
	}
	if timeoutMS > maxTimeoutMS {
		timeoutMS = maxTimeoutMS
	}

	var body io.Reader
	if method != http.MethodGet {
		buf, err := json.Marshal(rc.Message.Payload)
		if err != nil {
			rc.Emit(flow.PortError, map[string]interface{}{"error": "failed to encode request body: " + err.Error()})
			return nil
		}
		body = bytes.NewReader(buf)
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, body)
	if err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if headers, ok := rc.Config["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	client := r.client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		rc.Emit(flow.PortError, map[string]interface{}{"error": err.Error()})
		return nil
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	var decoded interface{}
	if json.Valid(respBody) {
		_ = json.Unmarshal(respBody, &decoded)
	} else {
		decoded = string(respBody)
	}

	rc.Emit(flow.PortOutput, map[string]interface{}{
		"status_code": resp.StatusCode,
		"body":        decoded,
		"headers":     headers,
	})
	return nil
}
