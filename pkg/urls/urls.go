// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package urls declares the well-known Atomic Data property and class
// subject URLs used throughout the core.
package urls

const base = "https://atomicdata.dev/"

// Property URLs.
const (
	Shortname          = base + "properties/shortname"
	Description        = base + "properties/description"
	IsA                = base + "properties/isA"
	Datatype           = base + "properties/datatype"
	ClassType          = base + "properties/classtype"
	Recommends         = base + "properties/recommends"
	Requires           = base + "properties/requires"
	Parent             = base + "properties/parent"
	AllowsOnly         = base + "properties/allowsOnly"
	PublicKey          = base + "properties/publicKey"
	Read               = base + "properties/read"
	Write              = base + "properties/write"
	LastCommit         = base + "properties/lastCommit"
	Subject            = base + "properties/subject"
	CreatedAt          = base + "properties/createdAt"
	Signer             = base + "properties/signer"
	Set                = base + "properties/set"
	Remove             = base + "properties/remove"
	Push               = base + "properties/push"
	Destroy            = base + "properties/destroy"
	Signature          = base + "properties/signature"
	PreviousCommit     = base + "properties/previousCommit"
	Name               = base + "properties/name"
	EndpointParameters = base + "properties/endpointParameters"
)

// Class URLs.
const (
	Property = base + "classes/Property"
	Class    = base + "classes/Class"
	Datatype_ = base + "classes/Datatype"
	Agent    = base + "classes/Agent"
	Commit   = base + "classes/Commit"
	Drive    = base + "classes/Drive"
	Endpoint = base + "classes/Endpoint"
)

// PublicAgent is the sentinel that, when present in a read/write/append
// list, grants the right to every agent including unauthenticated ones.
const PublicAgent = base + "agents/publicAgent"

// PropertiesCollection and ClassesCollection are the conventional parent
// subjects for the bootstrap ontology's own Property and Class
// resources.
const (
	PropertiesCollection = base + "properties"
	ClassesCollection    = base + "classes"
)

// Datatype values (the literal string stored in a Property's `datatype`
// slot — distinct from the Go pkg/value.DataType enum used in memory).
const (
	DatatypeString        = base + "datatypes/string"
	DatatypeMarkdown      = base + "datatypes/markdown"
	DatatypeSlug          = base + "datatypes/slug"
	DatatypeInteger       = base + "datatypes/integer"
	DatatypeFloat         = base + "datatypes/float"
	DatatypeBoolean       = base + "datatypes/boolean"
	DatatypeTimestamp     = base + "datatypes/timestamp"
	DatatypeAtomicURL     = base + "datatypes/atomicURL"
	DatatypeResourceArray = base + "datatypes/resourceArray"
	DatatypeDate          = base + "datatypes/date"
	DatatypeNestedResource = base + "datatypes/nestedResource"
)
