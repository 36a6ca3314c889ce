// provision converges the AWS resource set backing a single-instance Docker
// host deployment.
//
// # Overview
//
// A deployment is identified by its project + environment pair. Every
// resource created carries identity tags derived from that pair, and every
// convergence step is discovery-guarded: find the resource by its tags (or
// deterministic name) first, create it only when absent. Re-running a fully
// converged deployment therefore plans and performs zero changes, and a run
// that failed part-way resumes where it stopped.
//
// # Phase: Apply
//
// Resources converge in dependency order, network -> security -> compute,
// with the storage branch (artifact bucket) running concurrently since
// nothing in the network chain depends on it:
//  1. VPC (DNS support + hostnames enabled)
//  2. Subnets, one per configured CIDR
//  3. Internet gateway, attached, with a default route in the main route table
//  4. Security group - 80/443 from anywhere, 22 from the admin CIDRs only
//  5. Key pair - operator public key imported (or ED25519 generated locally)
//  6. IAM role + instance profile scoped to the artifact bucket
//  7. Instance - launched with the rendered bootstrap script as user data
//  8. Elastic IP, allocated and associated with the instance
//  9. (parallel) S3 artifact bucket with all public access blocked
//
// Apply performs no rollback. Provider API errors propagate to the caller
// wrapped with the failing resource; the discovery guards make a simple
// re-run the recovery path.
//
// # Phase: Destroy
//
// Teardown discovers the deployment's resources by tag and removes them in
// reverse dependency order using a LIFO stack of destructors. The instance
// must reach the 'terminated' state before its network dependencies can go.
// Errors are joined rather than short-circuited so a partial teardown
// removes everything it can.
package provision
