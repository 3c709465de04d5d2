// Package providers holds the configuration structs shared by the concrete
// generation backends. One subpackage per vendor implements
// orchestrator.Generator over the vendor's HTTP API; any backend satisfying
// that capability is interchangeable from the core's point of view.
package providers
