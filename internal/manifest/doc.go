// Package manifest defines the Build Manifest of a packaged Streamlit
// application and compiles it into backend-neutral forms.
//
// A [Manifest] names a pinned base image, a working directory, the
// dependency manifest staged ahead of the project tree, the port the
// application binds, and the launch command. The port is a single field: both
// the exposed-port metadata and the --server.port launch option are derived
// from it, so they cannot drift apart.
//
// [Manifest.Directives] lists the build and launch directives in order.
// [Manifest.Recipe] compiles them into a [Recipe] of steps executed by the
// containerd backend; the dockerfile package renders the same directives as a
// Dockerfile for the Docker backend.
//
// Example usage:
//
//	m, err := manifest.Load(afero.NewOsFs(), "pybox.yaml")
//	if errors.Is(err, manifest.ErrNotFound) {
//	    m = manifest.Default()
//	} else if err != nil {
//	    return err
//	}
//
//	recipe := m.Recipe()
package manifest
