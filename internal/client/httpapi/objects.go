package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// Upload stores body as bucket/name. The server checks that name begins
// with the signed-in user's id.
func (c *Client) Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, request{
		method: http.MethodPost,
		path:   "/storage/v1/object/" + url.PathEscape(bucket) + "/" + url.PathEscape(name),
		bearer: token,
	}, body)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set(headerContentType, contentType)
	return c.send(req, nil)
}

// PublicURL returns the unauthenticated download URL of bucket/name.
func (c *Client) PublicURL(bucket, name string) string {
	return c.baseURL + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}
