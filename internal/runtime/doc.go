// Package runtime builds and runs containers through containerd.
//
// A [Runtime] connects to a containerd daemon. Base images are pulled and
// unpacked for the target platform; build containers are started from them
// with a long-running task so steps can be executed as additional processes.
// Files are copied in as tar streams.
//
// [Container.Checkpoint] turns the changes made so far into a committed
// snapshot plus a layer blob that later builds can start from with
// [Runtime.StartFromLayer]. [Container.Export] writes the base layers, the
// committed layers, and a final diff as an OCI archive whose config carries
// the launch command, working directory, exposed ports, environment, and
// labels.
//
// Built archives are imported with [Runtime.ImportImage] and launched with
// [Runtime.Run], which blocks until the process exits and returns its status,
// or [Runtime.RunDetached]. Launched containers share the host network
// namespace.
//
// Example usage:
//
//	rt, err := runtime.New(runtime.Options{
//	    Address:   "/run/containerd/containerd.sock",
//	    Namespace: "pybox",
//	})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//
//	base, err := rt.PullBase(ctx, "python:3.11-slim", runtime.DefaultPlatform())
//	if err != nil {
//	    return err
//	}
//
//	ctr, err := rt.StartContainer(ctx, base, "pybox-build-1")
//	if err != nil {
//	    return err
//	}
//	defer ctr.Destroy(ctx)
package runtime
