/*
Package agent implements self-registration of a freshly booted instance.

Register runs once, sequentially:

 1. require root or password-less sudo (sudo -n whoami)
 2. resolve the registry endpoint and session id, falling back to
    ICE_API_ENDPOINT and ICE_SESSION_ID
 3. list IPv4 addresses with `ip -o -f inet addr show`; a failing command
    aborts, no addresses is fine
 4. find the first /etc/passwd account whose ~/.ssh/authorized_keys holds a
    key and record its name and MD5 fingerprint; keys the agent may not
    read are read with `sudo -n cat` when not root
 5. ask the registry for the observed public address (/my_ip) and resolve
    its reverse DNS name
 6. take cloud_id and vpc_id from ICE_CLOUD_ID / ICE_VPC_ID, or derive them
    from the reverse DNS domain
 7. POST the instance
 8. write the assigned id to the breadcrumb file

Nothing is retried. With SkipIfRegistered, a breadcrumb naming an instance
that still exists in the same session ends the run before discovery;
without it every run registers a new instance.
*/
package agent
