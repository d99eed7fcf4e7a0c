// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package resource_test

import (
	"testing"

	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
	"github.com/stretchr/testify/assert"
)

func TestAtom_Equal(t *testing.T) {
	a := resource.Atom{Subject: "https://example.com/foo", Property: urls.Name, Value: value.NewString("x")}
	b := resource.Atom{Subject: "https://example.com/foo", Property: urls.Name, Value: value.NewString("x")}
	c := resource.Atom{Subject: "https://example.com/foo", Property: urls.Name, Value: value.NewString("y")}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}
