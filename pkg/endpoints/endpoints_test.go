// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package endpoints_test

import (
	"testing"

	"github.com/atomicdata-dev/atomicd/pkg/endpoints"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint_ToResource_SetsSubjectAndShape(t *testing.T) {
	e := endpoints.Endpoint{
		Path:        "/versions",
		Shortname:   "versions",
		Description: "Returns the commit history of a resource.",
		Params:      []string{urls.Subject},
	}

	r := e.ToResource("https://h")
	assert.Equal(t, "https://h/versions", r.Subject())

	isA, err := r.Get(urls.IsA)
	require.NoError(t, err)
	require.Len(t, isA.Array, 1)
	assert.Equal(t, urls.Endpoint, isA.Array[0].Subject)

	shortname, err := r.Get(urls.Shortname)
	require.NoError(t, err)
	assert.Equal(t, "versions", shortname.Str)

	params, err := r.Get(urls.EndpointParameters)
	require.NoError(t, err)
	require.Len(t, params.Array, 1)
	assert.Equal(t, urls.Subject, params.Array[0].Subject)
}

func TestEndpoint_ToResource_NoParamsYieldsEmptyArray(t *testing.T) {
	e := endpoints.Endpoint{Path: "/ping", Shortname: "ping"}
	r := e.ToResource("https://h")

	params, err := r.Get(urls.EndpointParameters)
	require.NoError(t, err)
	assert.Empty(t, params.Array)
}

func TestPostEndpoint_ToResource_SetsSubjectAndShape(t *testing.T) {
	p := endpoints.PostEndpoint{
		Path:        "/import",
		Shortname:   "import",
		Description: "Accepts a JSON-AD document and applies it as a sequence of commits.",
		Params:      []string{urls.Subject},
	}

	r := p.ToResource("https://h")
	assert.Equal(t, "https://h/import", r.Subject())

	shortname, err := r.Get(urls.Shortname)
	require.NoError(t, err)
	assert.Equal(t, "import", shortname.Str)
}
