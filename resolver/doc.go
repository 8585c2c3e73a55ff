/*

Package resolver is the public lookup entry point of rustydns. Lookup answers
(domain, qType) queries from the in-memory cache, falls back to the durable store and
finally to the upstream server, coalescing concurrent misses for the same key into a
single upstream fetch.

Upstream is defined as an interface so the network-facing implementation can be mocked
for testing purposes. Only functions which reach out to the network hide behind it; all
other functions are called directly.

*/
package resolver
