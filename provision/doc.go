// Package provision ships the account provisioning profile: the submission
// input contract, the handler references the graphs bind to, and the three
// graph variants as embedded YAML definitions.
//
// The graphs drive an account factory: serialize against other running
// factory processes, create the account, poll it to readiness, lay down
// additional resources, validate, and notify. The AD variant additionally
// syncs directory groups and attaches permission sets; the validate variant
// re-runs validation against an existing account.
package provision
