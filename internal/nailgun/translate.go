// Package nailgun builds the two process requests a nailgunnable invocation
// decomposes into: one that boots a resident server and one that asks the
// thin client to run the real work inside it.
package nailgun

import (
	"fmt"
	"strconv"
	"time"

	"github.com/buildgrid/ngexec/internal/process"
)

const (
	// ServerMainClass is the entry point every resident server boots with.
	ServerMainClass = "com.martiansoftware.nailgun.NGServer"

	// listenOnAnyPort tells NGServer to bind an ephemeral port and
	// announce it on stdout.
	listenOnAnyPort = ":0"

	// PortEnvVar is how the client binary learns which server to talk to.
	PortEnvVar = "NAILGUN_PORT"

	// ClientBinPath is the client binary's path inside the distribution.
	ClientBinPath = "bin/ng/1.0.0/ng"

	// serverStartTimeout bounds only the startup observation window; the
	// server itself is a long-lived shared resource.
	serverStartTimeout = 1000 * time.Second
)

// ServerName derives the pool lookup key for a main class.
func ServerName(mainClass string) string {
	return "nailgun_server_" + mainClass
}

// ServerRequest constructs the request that would start a resident server
// for the given JVM arguments. It is a pure function of its inputs: the
// request's fingerprint is the pool's reuse key, so any nondeterminism here
// would defeat caching.
func ServerRequest(name string, nailgunArgs []string, jdkHome, platform string) process.Request {
	argv := make([]string, 0, len(nailgunArgs)+2)
	argv = append(argv, nailgunArgs...)
	argv = append(argv, ServerMainClass, listenOnAnyPort)

	return process.Request{
		Argv:        argv,
		InputFiles:  process.EmptyDigest,
		Timeout:     serverStartTimeout,
		Description: fmt.Sprintf("Start a nailgun server for %s", name),
		JDKHome:     jdkHome,
		Platform:    platform,
	}
}

// ClientRequest constructs the request that runs the actual work through the
// nailgun client binary. Inputs, outputs, timeout, description, and platform
// carry over from the original request; argv is replaced, the server port is
// injected into the environment, and jdk_home is cleared because the client
// does not need a JVM of its own.
func ClientRequest(original process.Request, distribution, mainClass string, clientArgs []string, port int) process.Request {
	argv := make([]string, 0, len(clientArgs)+4)
	argv = append(argv, distribution, ClientBinPath, "--", mainClass)
	argv = append(argv, clientArgs...)

	env := original.CloneEnv()
	env[PortEnvVar] = strconv.Itoa(port)

	req := original
	req.Argv = argv
	req.Env = env
	req.JDKHome = ""
	return req
}
