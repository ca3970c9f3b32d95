/*
Package server implements msgpack IPC over stdin/stdout for a keyserve index.

Clients write a stream of msgpack encoded requests and read one response per
request, in order. Before the first request the server writes a status
message:

	{"status": "ready"}

# Requests

Every request carries an ID that is echoed back and an operation name:

	{"id": "r1", "op": "get", "k": "cat"}
	{"id": "r2", "op": "get_many", "keys": ["cat", "dog"]}
	{"id": "r3", "op": "prefix", "k": "ca", "c": 10}
	{"id": "r4", "op": "fuzzy", "k": "cot", "d": 1}
	{"id": "r5", "op": "multi", "k": "new y", "c": 5}
	{"id": "r6", "op": "items", "c": 100}
	{"id": "r7", "op": "size"}
	{"id": "r8", "op": "stats"}
	{"id": "r9", "op": "health"}
	{"id": "r10", "op": "near", "k": "pizzeria:u281wu88", "x": 12, "g": true}

The cutoff "c" defaults to the configured query cutoff when zero. Fuzzy
requests take their distance from "d", or the configured distance when it
is absent. "x" asks fuzzy and near requests to match that many leading
characters exactly (bytes for near). Near requests return the keys sharing
the longest prefix with "k"; "g" widens them to every key under the exact
prefix.

# Responses

Matches carry the key, the value rendered as text and the score:

	{"id": "r3", "m": [{"k": "car", "v": "2", "s": 0}], "c": 1, "t": 12}

"t" is the time spent in microseconds. Failed requests get an error
response with an HTTP-like code:

	{"id": "r3", "e": "negative cutoff", "code": 400}
*/
package server

// Request is a single client request.
type Request struct {
	ID       string   `msgpack:"id"`
	Op       string   `msgpack:"op"`
	Key      string   `msgpack:"k,omitempty"`
	Cutoff   int      `msgpack:"c,omitempty"`
	Distance *int     `msgpack:"d,omitempty"`
	Keys     []string `msgpack:"keys,omitempty"`
	Exact    int      `msgpack:"x,omitempty"`
	Greedy   bool     `msgpack:"g,omitempty"`
}

// Match is one result entry.
type Match struct {
	Key   string  `msgpack:"k"`
	Value string  `msgpack:"v,omitempty"`
	Score float64 `msgpack:"s"`
}

// Response answers query operations.
type Response struct {
	ID        string  `msgpack:"id"`
	Matches   []Match `msgpack:"m"`
	Count     int     `msgpack:"c"`
	TimeTaken int64   `msgpack:"t"`
	Stats     string  `msgpack:"st,omitempty"`
}

// StatusResponse answers health checks and announces readiness.
type StatusResponse struct {
	ID     string `msgpack:"id,omitempty"`
	Status string `msgpack:"status"`
}

// ErrorResponse holds basic error information for failed requests.
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"code"`
}
