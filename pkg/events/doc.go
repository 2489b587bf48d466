/*
Package events provides the registry's in-memory event broker.

The API server publishes an event for every registry change. Subscribers
receive them on buffered channels, optionally filtered by type; a
subscriber whose buffer is full misses events rather than blocking the
publisher, and Dropped counts those misses.

	handler ──Publish──▶ eventCh (100) ──▶ broadcast ──▶ subscriber (50)
	                                                 └─▶ Forwarder ──▶ NATS

Event types:

	session.created       a session was stored
	session.deleted       a session (and its instances) was removed
	instance.registered   an instance registration was accepted
	instance.deleted      an instance was removed
	cascade.failed        an instance could not be removed during a session delete

The Forwarder relays events as JSON to a Publisher. NATSPublisher connects
to a NATS server and publishes on DefaultSubject unless configured
otherwise, so external tooling can follow experiment progress without
polling the registry.
*/
package events
