// Package definition holds the environment definition: the user-supplied
// intent the orchestrator turns into a running gateway sandbox.
//
// A definition is parsed from YAML (or JSON) with Parse or Load, completed
// with WithDefaults from the controller configuration, and checked with
// Validate before any side effect:
//
//	name: sandbox1
//	mode: restore
//	backup: backups/plant.gwbk
//	projects: [projects/hmi]
//	gateway:
//	  edition: standard
//	  modulesEnabled: [perspective, opc-ua]
//
// Host references are relative to the environments root. The path resolver
// enforces that they stay inside it.
package definition
