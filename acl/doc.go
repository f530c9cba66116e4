// Package acl decides whether a source address may proceed.
//
// A Manager runs in one of two modes:
//
//   - DefaultDeny: only addresses on the permit list pass.
//   - DefaultPermit: every address passes unless it is on the deny list.
//
// Lists hold single addresses or CIDR ranges:
//
//	m := acl.NewManager(acl.DefaultDeny)
//	_ = m.PermitList.Add("10.0.0.0/8")
//	ok, err := m.Permit("10.1.2.3") // true, nil
//
// Evaluation has no side effects. Lists are updated through copy-on-write
// snapshots, so Permit is lock-free and safe from any number of goroutines
// while entries are being added or removed.
package acl
