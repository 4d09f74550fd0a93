// Package drive provides the two drive backends the crawler can run on.
//
//   - LocalStore: drives synced to the local filesystem, one directory per key.
//     Mounts are symbolic links pointing at a hyper:// address.
//   - RemoteClient: drives served by a running drive daemon, reached through
//     JSON-RPC over HTTP.
//
// Both satisfy crawler.Accessor and crawler.Pinger, and their drives satisfy
// crawler.MountableDrive. The backend is chosen once, when the CLI composes
// the crawler.
package drive
