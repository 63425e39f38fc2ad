// Package controlplane implements orchestrator.ControlPlane against a
// real HTTP manifest service: fetching the deployment manifest for this
// device, validating it against a JSON Schema before trusting any of
// it, and guarding the whole call behind a circuit breaker and a token
// bucket so a misbehaving control plane cannot be hammered or let a
// struggling device spin hot on retries.
//
// Grounded on cmd/job-queue-system/main.go's HTTP-client wiring style
// and internal/breaker's CircuitBreaker, reused here for the control
// plane call instead of a Redis operation; manifest validation follows
// xeipuuv/gojsonschema the way internal/canary-deployments validates
// its own config payloads.
package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/edgecore/core-runtime/internal/asset"
	"github.com/edgecore/core-runtime/internal/breaker"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultManifestSchema validates the wire shape every manifest must
// satisfy before toDeployment ever touches it. Callers with a stricter
// or fleet-specific manifest format may pass their own schema to New
// instead.
const DefaultManifestSchema = `{
  "type": "object",
  "required": ["etag", "deployment_id", "script_id", "assets"],
  "properties": {
    "etag": {"type": "string"},
    "deployment_id": {"type": "integer"},
    "force_update": {"type": "boolean"},
    "script_id": {"type": "object"},
    "assets": {"type": "array"},
    "module_ids": {"type": "array"}
  }
}`

// manifest is the wire shape returned by the control plane: a flat asset
// list plus the script asset's ID and the IDs of any modules the
// deployment wants materialised alongside it, so the client can
// reconstruct the dependency tree without the server needing to nest
// JSON arbitrarily deep. ModuleIDs is separate from the script's own
// declared children: it is the manifest-level `modules` list from
// spec.md §3/§6, prefetched independently of whatever the script graph
// references.
type manifest struct {
	ETag         string            `json:"etag"`
	DeploymentID int64             `json:"deployment_id"`
	ForceUpdate  bool              `json:"force_update"`
	ScriptID     manifestAssetID   `json:"script_id"`
	Assets       []manifestAsset   `json:"assets"`
	ModuleIDs    []manifestAssetID `json:"module_ids"`
}

type manifestAssetID struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Type    string `json:"type"`
}

type manifestAsset struct {
	ID          manifestAssetID   `json:"id"`
	WebLocation string            `json:"web_location"`
	Children    []manifestAssetID `json:"children"`
}

// Client fetches and validates deployment manifests over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	schema     *gojsonschema.Schema
	breaker    *breaker.CircuitBreaker
	limiter    *rate.Limiter
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithRateLimit bounds how often the control plane may be polled,
// independent of the orchestrator's own poll interval, as a last line of
// defense against a misconfigured poll loop.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(cl *Client) { cl.limiter = rate.NewLimiter(r, burst) }
}

// WithLogger attaches a logger for fetch/validation failures.
func WithLogger(log *zap.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// New builds a Client against baseURL, validating every fetched
// manifest against schemaJSON (a JSON Schema document).
func New(baseURL string, schemaJSON []byte, opts ...Option) (*Client, error) {
	loader := gojsonschema.NewBytesLoader(schemaJSON)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("controlplane: invalid manifest schema: %w", err)
	}
	cl := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		schema:     schema,
		breaker:    breaker.New(time.Minute, 30*time.Second, 0.5, 5),
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl, nil
}

// LatestDeployment implements orchestrator.ControlPlane.
func (c *Client) LatestDeployment(ctx context.Context, currentETag string) (*asset.Deployment, bool, error) {
	if !c.breaker.Allow() {
		return nil, false, fmt.Errorf("controlplane: circuit open")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/deployment", nil)
	if err != nil {
		c.breaker.Record(false)
		return nil, false, err
	}
	if currentETag != "" {
		req.Header.Set("If-None-Match", currentETag)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.Record(false)
		return nil, false, fmt.Errorf("controlplane: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.breaker.Record(true)
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		c.breaker.Record(false)
		return nil, false, fmt.Errorf("controlplane: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.Record(false)
		return nil, false, err
	}

	if err := c.validate(body); err != nil {
		c.breaker.Record(false)
		return nil, false, err
	}

	var m manifest
	if err := json.Unmarshal(body, &m); err != nil {
		c.breaker.Record(false)
		return nil, false, fmt.Errorf("controlplane: decode manifest: %w", err)
	}

	d, err := toDeployment(m)
	if err != nil {
		c.breaker.Record(false)
		return nil, false, err
	}
	c.breaker.Record(true)
	return d, false, nil
}

func (c *Client) validate(body []byte) error {
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("controlplane: schema validation: %w", err)
	}
	if !result.Valid() {
		var buf bytes.Buffer
		for _, e := range result.Errors() {
			fmt.Fprintf(&buf, "%s; ", e.String())
		}
		if c.log != nil {
			c.log.Warn("controlplane: manifest failed schema validation", zap.String("errors", buf.String()))
		}
		return fmt.Errorf("controlplane: invalid manifest: %s", buf.String())
	}
	return nil
}

func toDeployment(m manifest) (*asset.Deployment, error) {
	byID := make(map[string]*asset.Asset, len(m.Assets))
	for _, ma := range m.Assets {
		byID[ma.ID.Name+"|"+ma.ID.Version] = &asset.Asset{
			ID:          toAssetID(ma.ID),
			WebLocation: ma.WebLocation,
		}
	}
	for _, ma := range m.Assets {
		a := byID[ma.ID.Name+"|"+ma.ID.Version]
		for _, childID := range ma.Children {
			child, ok := byID[childID.Name+"|"+childID.Version]
			if !ok {
				return nil, fmt.Errorf("controlplane: manifest references unknown child asset %s:%s", childID.Name, childID.Version)
			}
			a.Children = append(a.Children, child)
		}
	}
	script, ok := byID[m.ScriptID.Name+"|"+m.ScriptID.Version]
	if !ok {
		return nil, fmt.Errorf("controlplane: manifest script_id %s:%s not present in assets", m.ScriptID.Name, m.ScriptID.Version)
	}
	if err := asset.ValidateGraph(script); err != nil {
		return nil, err
	}

	modules := make([]*asset.Asset, 0, len(m.ModuleIDs))
	for _, modID := range m.ModuleIDs {
		mod, ok := byID[modID.Name+"|"+modID.Version]
		if !ok {
			return nil, fmt.Errorf("controlplane: manifest references unknown module asset %s:%s", modID.Name, modID.Version)
		}
		if err := asset.ValidateGraph(mod); err != nil {
			return nil, err
		}
		modules = append(modules, mod)
	}

	return &asset.Deployment{
		ID:          m.DeploymentID,
		ETag:        m.ETag,
		Script:      script,
		Modules:     modules,
		ForceUpdate: m.ForceUpdate,
	}, nil
}

func toAssetID(m manifestAssetID) asset.ID {
	return asset.ID{Name: m.Name, Version: m.Version, Type: parseAssetType(m.Type)}
}

func parseAssetType(s string) asset.Type {
	switch s {
	case "MODEL":
		return asset.TypeModel
	case "DOCUMENT":
		return asset.TypeDocument
	case "RETRIEVER":
		return asset.TypeRetriever
	case "LLM":
		return asset.TypeLLM
	default:
		return asset.TypeScript
	}
}
