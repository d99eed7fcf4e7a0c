// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package endpoints declares the Endpoint contract: a path that accepts
// query parameters and returns a resource computed at request time
// (e.g. a commit's version history, a search result). This package only
// describes the contract; wiring a path to an HTTP router is an outer
// concern with no analog here.
package endpoints

import (
	"context"

	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// GetContext is passed to an Endpoint's Handle function.
type GetContext struct {
	Subject  string
	Query    map[string]string
	ForAgent string
}

// PostContext is passed to a PostEndpoint's Handle function.
type PostContext struct {
	Subject  string
	Query    map[string]string
	ForAgent string
	Body     []byte
}

// HandleGet computes the resource an Endpoint's GET returns.
type HandleGet func(ctx context.Context, gctx GetContext) (*resource.Resource, error)

// HandlePost computes the resource a PostEndpoint's POST returns.
type HandlePost func(ctx context.Context, pctx PostContext) (*resource.Resource, error)

// Endpoint is a GET-able (and optionally POST-able) dynamic resource.
type Endpoint struct {
	// Path is the part behind the server domain, e.g. "/versions".
	// Includes the leading slash.
	Path        string
	Shortname   string
	Description string
	// Params lists the property URLs this endpoint accepts as query
	// parameters.
	Params     []string
	Handle     HandleGet
	HandlePost HandlePost
}

// PostEndpoint is an endpoint reachable only via POST (e.g. a file
// upload or a registration flow).
type PostEndpoint struct {
	Path        string
	Shortname   string
	Description string
	Params      []string
	Handle      HandlePost
}

// ToResource renders e as the static Endpoint resource fetched on a
// bare GET with no query parameters.
func (e Endpoint) ToResource(serverURL string) *resource.Resource {
	r := resource.NewUnchecked(serverURL + e.Path)
	r.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(urls.Endpoint))
	r.SetPropvalUnsafe(urls.Shortname, value.NewSlug(e.Shortname))
	r.SetPropvalUnsafe(urls.Description, value.NewMarkdown(e.Description))
	r.SetPropvalUnsafe(urls.EndpointParameters, value.NewResourceArray(e.Params...))
	return r
}

// ToResource renders p as the static Endpoint resource fetched on a
// bare GET with no query parameters.
func (p PostEndpoint) ToResource(serverURL string) *resource.Resource {
	r := resource.NewUnchecked(serverURL + p.Path)
	r.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(urls.Endpoint))
	r.SetPropvalUnsafe(urls.Shortname, value.NewSlug(p.Shortname))
	r.SetPropvalUnsafe(urls.Description, value.NewMarkdown(p.Description))
	r.SetPropvalUnsafe(urls.EndpointParameters, value.NewResourceArray(p.Params...))
	return r
}
