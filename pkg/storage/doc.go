/*
Package storage persists registry documents (sessions and instances).

Two embedded backends implement the Store interface:

	┌──────────────── STORAGE ────────────────┐
	│                                          │
	│  BoltStore    <dataDir>/registry.db      │
	│    buckets: sessions, instances          │
	│                                          │
	│  BadgerStore  <dataDir>/badger/          │
	│    keys: session:<id>, instance:<id>     │
	│                                          │
	│  values: JSON encoded types.Session /    │
	│          types.Instance                  │
	└──────────────────────────────────────────┘

Every write goes through stamp, which assigns the server-side metadata:
a random UUID for _id when none is set, _created/_updated timestamps and an
_etag computed as the SHA-1 of the document's transport form. Ids already
present are kept so documents can be moved between backends with Copy.

Each operation is atomic for the single document it touches. Listing
instances of one session is a full scan followed by an in-memory filter;
registry sizes are in the hundreds of documents.

# Usage

	store, err := storage.Open(storage.BackendBolt, "/var/lib/ice")
	if err != nil {
		return err
	}
	defer store.Close()

	session := &types.Session{ClientIPAddr: "80.10.100.200"}
	if err := store.CreateSession(session); err != nil {
		return err
	}

	_, err = store.GetInstance("missing")
	if errors.Is(err, storage.ErrNotFound) {
		// 404
	}
*/
package storage
