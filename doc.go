// This file exists so that "go doc github.com/hjrgrn/rusty-dns" displays something
// useful.

/*

Rustydns is a caching DNS resolver. It answers queries from a TTL-governed cache of
resource records held both in memory and in a SQLite database, forwarding cache misses
to a configured upstream server. Accepted answers are persisted so the cache survives
restarts; a background reaper prunes expired records from both layers.

Rustydns deliberately does no recursive resolution of its own - the upstream server is
expected to provide that - nor any DNSSEC validation or zone hosting.

Project site: https://github.com/hjrgrn/rusty-dns

*/
package main
