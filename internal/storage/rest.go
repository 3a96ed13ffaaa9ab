package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RESTClient is the production Adapter implementation: a table-oriented
// REST store reached over HTTP with github.com/go-resty/resty/v2, following
// the request shape conventional for such stores — filters as query
// parameters, rows as JSON bodies, one endpoint per table.
//
// Called by: public/agent (heartbeat and mark-stopped writes to agents),
// public/orchestrator (system_health, alerts), internal/gateway (C6,
// orders/positions/audit).
type RESTClient struct {
	client  *resty.Client
	baseURL string
}

// NewRESTClient builds a client against baseURL with serviceKey sent as a
// bearer token and a 10s client-wide timeout. The timeout applies to every
// request; a caller's context deadline can shorten it but not extend it.
func NewRESTClient(baseURL, serviceKey string) *RESTClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	if serviceKey != "" {
		c.SetAuthToken(serviceKey)
	}
	return &RESTClient{client: c, baseURL: baseURL}
}

func (r *RESTClient) Get(ctx context.Context, table string, filters Filter, sel []string) ([]Row, error) {
	req := r.client.R().SetContext(ctx)
	for k, v := range filters {
		req.SetQueryParam(fmt.Sprintf("%s.eq", k), fmt.Sprintf("%v", v))
	}
	if len(sel) > 0 {
		req.SetQueryParam("select", strings.Join(sel, ","))
	}

	var rows []Row
	resp, err := req.SetResult(&rows).Get("/" + table)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Table: table, Err: err}
	}
	if resp.IsError() {
		return nil, &PersistenceError{Op: "get", Table: table, Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
	}
	return rows, nil
}

func (r *RESTClient) Insert(ctx context.Context, table string, row Row) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(row).
		Post("/" + table)
	if err != nil {
		return &PersistenceError{Op: "insert", Table: table, Err: err}
	}
	if resp.IsError() {
		return &PersistenceError{Op: "insert", Table: table, Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
	}
	return nil
}

func (r *RESTClient) Upsert(ctx context.Context, table string, row Row, onConflict []string) error {
	req := r.client.R().SetContext(ctx).SetBody(row)
	if len(onConflict) > 0 {
		req.SetQueryParam("on_conflict", strings.Join(onConflict, ","))
	}
	resp, err := req.Put("/" + table)
	if err != nil {
		return &PersistenceError{Op: "upsert", Table: table, Err: err}
	}
	if resp.IsError() {
		return &PersistenceError{Op: "upsert", Table: table, Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
	}
	return nil
}

func (r *RESTClient) Patch(ctx context.Context, table string, filters Filter, partial Row) error {
	req := r.client.R().SetContext(ctx).SetBody(partial)
	for k, v := range filters {
		req.SetQueryParam(fmt.Sprintf("%s.eq", k), fmt.Sprintf("%v", v))
	}
	resp, err := req.Patch("/" + table)
	if err != nil {
		return &PersistenceError{Op: "patch", Table: table, Err: err}
	}
	if resp.IsError() {
		return &PersistenceError{Op: "patch", Table: table, Err: fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())}
	}
	return nil
}
