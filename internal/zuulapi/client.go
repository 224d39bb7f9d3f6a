// Package zuulapi is a thin client for the Zuul REST API endpoints this
// layer consumes: build and buildset records.
package zuulapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/zuulview/zuulview/internal/transport"
	"github.com/zuulview/zuulview/pkg/domain"
)

// Client fetches build records from a Zuul API root (for example
// https://zuul.example.org/api).
type Client struct {
	base string
	get  transport.Getter
}

func NewClient(base string, get transport.Getter) *Client {
	return &Client{base: strings.TrimSuffix(base, "/"), get: get}
}

// BuildURL returns the request URL for a build record; failure events carry
// it for diagnostics.
func (c *Client) BuildURL(tenant, uuid string) string {
	return fmt.Sprintf("%s/tenant/%s/build/%s", c.base, tenant, uuid)
}

// BuildsetURL returns the request URL for a buildset record.
func (c *Client) BuildsetURL(tenant, uuid string) string {
	return fmt.Sprintf("%s/tenant/%s/buildset/%s", c.base, tenant, uuid)
}

func (c *Client) Build(ctx context.Context, tenant, uuid string) (*domain.Build, error) {
	var b domain.Build
	if err := transport.GetJSON(ctx, c.get, c.BuildURL(tenant, uuid), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) Buildset(ctx context.Context, tenant, uuid string) (*domain.Buildset, error) {
	var bs domain.Buildset
	if err := transport.GetJSON(ctx, c.get, c.BuildsetURL(tenant, uuid), &bs); err != nil {
		return nil, err
	}
	return &bs, nil
}
