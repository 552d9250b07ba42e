package httpapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/keyxmakerx/scribe/internal/restquery"
)

// Insert adds row to table and decodes the created rows into out.
func (c *Client) Insert(ctx context.Context, table string, row any, out any) error {
	return c.rowCall(ctx, http.MethodPost, "/rest/v1/"+table, nil, row, nil, out)
}

// Upsert inserts row or merges it into the existing row with the same key.
func (c *Client) Upsert(ctx context.Context, table string, row any, out any) error {
	h := http.Header{"Prefer": {"resolution=merge-duplicates"}}
	return c.rowCall(ctx, http.MethodPost, "/rest/v1/"+table, nil, row, h, out)
}

// Select reads rows matching q.
func (c *Client) Select(ctx context.Context, table string, q restquery.Query, out any) error {
	return c.rowCall(ctx, http.MethodGet, "/rest/v1/"+table, q.Encode(), nil, nil, out)
}

// Update patches rows matching filters and decodes the updated rows.
func (c *Client) Update(ctx context.Context, table string, filters []restquery.Filter, patch any, out any) error {
	q := restquery.Query{Filters: filters}
	return c.rowCall(ctx, http.MethodPatch, "/rest/v1/"+table, q.Encode(), patch, nil, out)
}

// Delete removes rows matching filters.
func (c *Client) Delete(ctx context.Context, table string, filters []restquery.Filter) error {
	q := restquery.Query{Filters: filters}
	return c.rowCall(ctx, http.MethodDelete, "/rest/v1/"+table, q.Encode(), nil, nil, nil)
}

// RPC calls a server function.
func (c *Client) RPC(ctx context.Context, fn string, args any, out any) error {
	if args == nil {
		args = struct{}{}
	}
	return c.rowCall(ctx, http.MethodPost, "/rest/v1/rpc/"+url.PathEscape(fn), nil, args, nil, out)
}

// rowCall attaches the bearer token when signed in. Anonymous calls are
// allowed; the server decides what they may read.
func (c *Client) rowCall(ctx context.Context, method, path string, query url.Values, body any, header http.Header, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, request{method: method, path: path, query: query, body: body, bearer: token, header: header}, out)
}
