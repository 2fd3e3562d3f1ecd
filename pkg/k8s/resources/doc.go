// Package resources provides idempotent helpers for the Kubernetes objects the
// bootstrap stages create, and readiness waits for what they deploy.
//
// Every Ensure function follows check-then-act: it reads the object first and
// only creates it when missing. "Already exists" races are treated as success.
//
//	created, err := resources.EnsureNamespace(ctx, cs, "harbor")
//
// Waits poll with wait.PollUntilContextTimeout and return an error with code
// TIMEOUT that carries the last observed state:
//
//	err := resources.WaitForDeploymentReady(ctx, cs, "harbor", "harbor-core", 5*time.Minute)
package resources
