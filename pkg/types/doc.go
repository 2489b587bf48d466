/*
Package types defines the registry entities shared by the server, the client
and the self-registration agent.

	┌──────────── Session ────────────┐        ┌──────────── Instance ────────────┐
	│ _id, _created, _updated, _etag  │ 1    * │ _id, _created, _updated, _etag   │
	│ client_ip_addr                  │◄───────┤ session_id                       │
	└─────────────────────────────────┘        │ networks[] {addr, iface, bcast}  │
	                                           │ public_ip_addr, public_reverse_dns│
	                                           │ ssh_username, ssh_port,          │
	                                           │ ssh_authorized_fingerprint       │
	                                           │ cloud_id, vpc_id, tags           │
	                                           │ status, failed_pings_count       │
	                                           └──────────────────────────────────┘

The underscore-prefixed fields are assigned by the registry and are stripped by
ToDocument, which produces the transport form a client submits on create.
Status and FailedPingsCount are informational: nothing in the registry drives
them through a state machine.
*/
package types
