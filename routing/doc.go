// Package routing maps logical addresses to transport endpoints.
//
// The table knows three kinds of destinations:
//
//   - the node itself, which always resolves to a loopback route and never
//     causes a network send;
//   - peers, learned from inbound traffic ("last heard from here") and kept
//     in a bounded least-recently-heard cache;
//   - routers, configured up front, never evicted, and used round-robin as
//     relays for any address without a peer entry.
//
// Because addresses are derived from content rather than location, this
// "last heard from" table plus unconditional router fallback is enough for
// a best-effort overlay; no distributed hash table is involved.
package routing
