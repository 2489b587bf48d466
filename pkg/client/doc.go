/*
Package client is the typed Go client of the ice registry.

Every other component (the operator CLI, the self-registration agent, test
harnesses) talks to the registry through this package; it is the only place
where the wire format is built and parsed.

	c := client.New(client.Config{Host: "registry.local", Port: 5000})
	if !c.PingWithRetries(10) {
		return errors.New("registry not up")
	}

	session := &types.Session{ClientIPAddr: ip}
	if _, err := c.SubmitSession(session); err != nil {
		return err
	}
	script, _ := c.CompileUserData(session, map[string]string{"role": "server"})

# Errors

Every failing call returns an *APIError carrying the HTTP status (zero for
transport failures), a reason, the raw response body and the underlying
cause. Validation failures render as

	Validation error: `public_ip_addr`: must be of ip type

and expose the per-field map through Issues. IsNotFound identifies
deletes and gets of missing documents.

# Retries

Only the readiness probe is retried: PingWithRetries pings with a fixed
PingInterval between attempts and no jitter. Business calls are never
retried; a repeated SubmitInstance would register the VM twice.

# Cascade

DeleteSession deletes the session's instances one by one before deleting
the session, duplicating the registry's own cascade. Instances or a
session that are already gone are skipped, so the call is safe to repeat.
*/
package client
