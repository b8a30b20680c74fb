// Package server implements the pybox daemon.
//
// The daemon listens on a Unix domain socket for JSON-encoded commands from
// the pybox CLI. Each connection carries a single request-response exchange:
// the client sends a newline-delimited JSON envelope, the server dispatches
// the command, and writes the result back before closing the connection. A
// request is cancelled when the client disconnects before the response. Start
// refuses to run while another daemon answers on the same socket.
//
// Build commands are delegated to the build package and run against the
// daemon's containerd runtime with the layer cache. Launch commands import
// a built archive and start it detached, with output in a per-container log
// file; the container lifecycle commands then stop, query, or remove it.
//
// Example usage:
//
//	srv, err := server.New(server.Config{
//	    Runtime: runtime.Options{
//	        Address:   "/run/containerd/containerd.sock",
//	        Namespace: "pybox",
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//
//	if err := srv.Start(); err != nil {
//	    return err
//	}
//	defer srv.Stop()
//
//	<-srv.Done()
package server
