// Package oci pushes a small artifact to the Harbor registry to verify it end to end.
//
// The smoke test writes a generated file, packages it as an OCI 1.1 artifact
// in a local OCI Image Layout, pushes it with a robot account and resolves
// the tag again from the registry. A successful run proves that the ingress,
// the TLS certificate, robot authentication and registry storage all work.
//
// # Usage
//
//	res, err := oci.SmokeTest(ctx, oci.SmokeOptions{
//	    Registry: "harbor.lab.example.com",
//	    Project:  "ci",
//	    Username: "robot$ci+push",
//	    Password: secret,
//	})
//
// The artifact is pushed to <registry>/<project>/labctl-smoke:<tag>. The tag
// defaults to a timestamp so repeated runs do not collide with immutable tag
// rules.
//
// # Authentication
//
// Explicit credentials are used when given. Otherwise the Docker credential
// store (~/.docker/config.json and credential helpers) is consulted through
// the ORAS credentials package.
//
// # Artifact Type
//
// Artifacts carry the type "application/vnd.labctl.smoke.v1". Registries show
// them as non-runnable artifacts.
package oci
