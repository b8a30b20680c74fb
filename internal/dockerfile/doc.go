// Package dockerfile converts between build manifests and Dockerfiles.
//
// [Render] writes the manifest's directives as a Dockerfile for the Docker
// backend and for users who build with their own tooling. The dependency
// manifest is copied and installed before the project tree, so an unchanged
// requirements file keeps the install layer cached.
//
// [Import] reads an existing Dockerfile of the same shape back into a
// manifest. Instructions that have no manifest equivalent are reported as
// warnings, as is an EXPOSE that disagrees with the --server.port launch
// option; the latter is a silent misconfiguration in a handwritten
// Dockerfile and cannot occur in a rendered one.
package dockerfile
