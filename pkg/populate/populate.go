// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package populate bootstraps a fresh Store with the ontology resources
// the rest of the core assumes already exist: the Property and Class
// definitions for shortname/description/isA/datatype/etc, and a Drive
// root to hold everything else.
package populate

import (
	"fmt"
	"net/url"

	aerrors "github.com/atomicdata-dev/atomicd/pkg/errors"
	"github.com/atomicdata-dev/atomicd/pkg/resource"
	"github.com/atomicdata-dev/atomicd/pkg/schema"
	"github.com/atomicdata-dev/atomicd/pkg/store"
	"github.com/atomicdata-dev/atomicd/pkg/urls"
	"github.com/atomicdata-dev/atomicd/pkg/value"
)

// baseProperties is the minimal set of Properties needed before any
// other resource (including a Class or Property itself) can be schema
// validated. Order does not matter: they are written directly, bypassing
// the commit engine's schema check, for the same reason the reference
// implementation does — Property needs `datatype` and `shortname`
// defined before Property itself can be validated against its own
// shape.
var baseProperties = []schema.Property{
	{Subject: urls.Shortname, Shortname: "shortname", Datatype: value.Slug, Description: "A short name of something. It can only contain letters, numbers and dashes. Useful in programming contexts where the user should be able to type something short to identify a specific thing."},
	{Subject: urls.Description, Shortname: "description", Datatype: value.Markdown, Description: "A textual description of something. Supports markdown."},
	{Subject: urls.IsA, Shortname: "is-a", Datatype: value.ResourceArray, ClassType: urls.Class, Description: "A list of Classes of which the thing is an instance. Determines which Properties are recommended and required."},
	{Subject: urls.Datatype, Shortname: "datatype", Datatype: value.AtomicURL, ClassType: urls.Datatype_, Description: "The Datatype of a property, such as String or Timestamp."},
	{Subject: urls.ClassType, Shortname: "classtype", Datatype: value.AtomicURL, ClassType: urls.Class, Description: "Restricts an AtomicURL or ResourceArray property's values to instances of this class."},
	{Subject: urls.Recommends, Shortname: "recommends", Datatype: value.ResourceArray, ClassType: urls.Property, Description: "The Properties that are not required, but recommended for this Class."},
	{Subject: urls.Requires, Shortname: "requires", Datatype: value.ResourceArray, ClassType: urls.Property, Description: "The Properties that are required for this Class."},
	{Subject: urls.Parent, Shortname: "parent", Datatype: value.AtomicURL, Description: "Sets the hierarchical structure of a Resource, and therefore its rights and grants."},
	{Subject: urls.AllowsOnly, Shortname: "allows-only", Datatype: value.ResourceArray, Description: "Restricts a Property to only the values inside this one, turning it into an enum."},
	{Subject: urls.PublicKey, Shortname: "public-key", Datatype: value.String, Description: "The Ed25519 public key of an Agent, base64 encoded."},
	{Subject: urls.Read, Shortname: "read", Datatype: value.ResourceArray, Description: "Agents granted read rights on this resource and its descendants."},
	{Subject: urls.Write, Shortname: "write", Datatype: value.ResourceArray, Description: "Agents granted write (and therefore append) rights on this resource and its descendants."},
	{Subject: urls.LastCommit, Shortname: "last-commit", Datatype: value.AtomicURL, Description: "The most recently applied Commit on this resource, used for optimistic concurrency."},
	{Subject: urls.Name, Shortname: "name", Datatype: value.String, Description: "A human readable name for a resource."},
}

var baseClasses = []schema.Class{
	{
		Subject:    urls.Property,
		Shortname:  "property",
		Requires:   []string{urls.Shortname, urls.Datatype, urls.Description},
		Recommends: []string{urls.ClassType, urls.AllowsOnly},
		Description: "A Property is a single field in a Class. An instance of Property requires a " +
			"datatype, a human readable description, and a shortname.",
	},
	{
		Subject:    urls.Class,
		Shortname:  "class",
		Requires:   []string{urls.Shortname, urls.Description},
		Recommends: []string{urls.Requires, urls.Recommends},
		Description: "A Class describes an abstract concept, such as Person or BlogPost. Resources use " +
			"isA to indicate which classes they are instances of; a Resource can have several classes.",
	},
	{
		Subject:     urls.Datatype_,
		Shortname:   "datatype",
		Requires:    []string{urls.Shortname, urls.Description},
		Description: "A Datatype describes a possible type of value, such as string or integer.",
	},
	{
		Subject:     urls.Agent,
		Shortname:   "agent",
		Requires:    []string{urls.PublicKey},
		Recommends:  []string{urls.Name, urls.Description},
		Description: "An Agent is a user that can create or modify data via signed Commits.",
	},
	{
		Subject:     urls.Commit,
		Shortname:   "commit",
		Requires:    []string{urls.Subject, urls.CreatedAt, urls.Signer},
		Description: "A Commit is a signed, append-only delta applied to a Resource.",
	},
	{
		Subject:     urls.Drive,
		Shortname:   "drive",
		Recommends:  []string{urls.Name, urls.Description},
		Description: "A Drive is the root resource of a server or subdomain, holding every other resource beneath it.",
	},
}

// BaseModels writes every baseProperties and baseClasses entry directly
// into s, bypassing the commit engine (there is no signing agent yet,
// and the schema needed to validate a commit against Property/Class
// doesn't exist until this call returns).
func BaseModels(s store.Store) error {
	for _, p := range baseProperties {
		subject, pv := p.ToResource()
		r := resource.NewUnchecked(subject)
		for k, v := range pv {
			r.SetPropvalUnsafe(k, v)
		}
		r.SetPropvalUnsafe(urls.Parent, value.NewAtomicURL(urls.PropertiesCollection))
		if err := s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}); err != nil {
			return aerrors.Internalf(subject, "populate base property: %v", err)
		}
	}
	for _, c := range baseClasses {
		subject, pv := c.ToResource()
		r := resource.NewUnchecked(subject)
		for k, v := range pv {
			r.SetPropvalUnsafe(k, v)
		}
		r.SetPropvalUnsafe(urls.Parent, value.NewAtomicURL(urls.ClassesCollection))
		if err := s.AddResourceOpts(r, store.AddResourceOpts{UpdateIndex: true, Overwrite: true}); err != nil {
			return aerrors.Internalf(subject, "populate base class: %v", err)
		}
	}
	return nil
}

// CreateDrive creates the Drive resource at s's server URL (or, if name
// is non-empty, at a subdomain of it), granting forAgent read and write,
// and optionally granting public read. It fails if the drive subject
// already exists.
func CreateDrive(s store.Store, name, forAgent string, publicRead bool) (*resource.Resource, error) {
	subject := s.GetServerURL()
	if name != "" {
		u, err := url.Parse(subject)
		if err != nil || u.Host == "" {
			return nil, aerrors.Validationf(subject, "server URL is not an absolute URL")
		}
		u.Host = name + "." + u.Host
		subject = u.String()
	}
	if _, err := s.GetResource(subject); err == nil {
		return nil, aerrors.Conflictf(subject, "drive subject is already taken")
	} else if aerrors.KindOf(err) != aerrors.NotFound {
		return nil, err
	}

	drive := resource.NewUnchecked(subject)
	drive.SetPropvalUnsafe(urls.IsA, value.NewResourceArray(urls.Drive))
	if name != "" {
		drive.SetPropvalUnsafe(urls.Name, value.NewString(name))
	} else {
		drive.SetPropvalUnsafe(urls.Name, value.NewString("Main drive"))
	}
	drive.SetPropvalUnsafe(urls.Write, value.NewResourceArray(forAgent))
	readers := []string{forAgent}
	if publicRead {
		readers = append(readers, urls.PublicAgent)
	}
	drive.SetPropvalUnsafe(urls.Read, value.NewResourceArray(readers...))
	drive.SetPropvalUnsafe(urls.Description, value.NewMarkdown(fmt.Sprintf(
		"Welcome to your Atomic Data server. Your agent (%s) has read and write access to this drive.", forAgent)))

	if err := s.AddResourceOpts(drive, store.AddResourceOpts{UpdateIndex: true, Overwrite: false}); err != nil {
		return nil, aerrors.Internalf(subject, "create drive: %v", err)
	}
	return drive, nil
}
