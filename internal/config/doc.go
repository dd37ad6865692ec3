// Package config defines the declarative configuration model of garden and
// the loader that turns garden.yml files into an immutable ProjectSnapshot.
//
// A project tree contains one project document and any number of module
// documents, spread across multi-document YAML files. The loader parses,
// defaults and validates declarations; it deliberately knows nothing about
// the dependency graph. Reference resolution and cycle detection happen in
// the graph package, on every full reload.
package config
