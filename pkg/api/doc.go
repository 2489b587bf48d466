/*
Package api implements the ice registry HTTP server.

The server fronts a storage.Store with a small REST contract over two
resources, sessions and instances. It keeps no state between requests; all
coordination is left to the per-document atomicity of the store.

# Architecture

	┌──────────────────── REGISTRY SERVER ─────────────────────┐
	│                                                            │
	│  alice chain                                               │
	│    RecoveryHandler → logging → CompressHandler             │
	│    [→ ProxyHeaders when TrustForwardedFor]                 │
	│                     │                                      │
	│  gorilla/mux router (StrictSlash, metrics middleware)      │
	│    /            /v2/            root document (ping)       │
	│    /my_ip       /v2/my_ip       observed caller address    │
	│    /sessions    /v2/sessions    list / create              │
	│    /sessions/{id}               get / cascade delete       │
	│    /instances   /v2/instances   list / create              │
	│    /instances/{id}              get / delete               │
	│    /health /ready /live /metrics                           │
	│                     │                                      │
	│  schema.Validate ──▶ storage.Store ──▶ events.Broker       │
	└────────────────────────────────────────────────────────────┘

# Wire Format

Documents are JSON. Server-assigned fields carry a leading underscore
(_id, _created, _updated, _etag). A successful POST answers 201 with:

	{"_status": "OK", "_id": "...", "_created": "...", "_updated": "...", "_etag": "..."}

Collections are wrapped as {"_items": [...]} and accept an optional
where={"field": value} equality filter. Errors share one envelope:

	{"_status": "ERR", "_error": {"code": 422, "message": "..."},
	 "_issues": {"public_ip_addr": "must be of ip type"}}

_issues is present only on 422 and lists every offending field. A
session_id that names no stored session is reported as an issue on
session_id. GET or DELETE of a missing id answers 404; deleting twice is
therefore a 404, never a 5xx.

# Cascade

DELETE /sessions/{id} first removes every instance whose session_id is id,
then the session. A failing instance delete is logged, counted in
ice_cascade_failures_total and published as cascade.failed, and the
cascade continues. The sequence is not atomic: an instance registered
while the session is being deleted can survive as an orphan. Such orphans
are swept by any later DELETE of the same session id, which answers 404
once the session document is gone.

# Public Address

GET /my_ip returns the caller address as plain text. With
TrustForwardedFor the first X-Forwarded-For value is used instead of the
TCP peer; this is a deployment assumption, not a security boundary.

POST /instances applies the PublicIPPolicy before validation:

	fallback  a supplied public_ip_addr is validated as is; a missing one
	          is filled with the observed caller address (default)
	observed  public_ip_addr is always replaced by the observed address

Anyone who can reach the server and knows a session id can register into
that session.
*/
package api
