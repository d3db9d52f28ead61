// Package sshexec implements exec.ExternalInterface by driving an SSH
// connection to a single remote host, adapted from the teacher's
// pkg/transports/ssh (config.go, ssh_client.go, executor.go,
// file_transfer.go) with the connection-pool and jump-host machinery
// dropped: this executor targets one host per Client, matching the
// facade's single-call-at-a-time shape, rather than the teacher's
// fleet-of-hosts transport abstraction.
//
// ExecuteCommand runs the command node's name as a remote shell
// invocation and reports its SENT_TO_SYSTEM/RECEIVED_BY_SYSTEM/SUCCESS/
// FAILED lifecycle back through a CallbackSink as the session progresses
// and completes, the same state machine the teacher logs through but
// without a caller blocking on it. A successful command can publish a
// return value by writing a small JSON file at a per-node path under
// Config.RemoteStateDir, which Client retrieves and deletes over SFTP
// once the session exits zero. ExecuteUpdate/ExecuteAssignment/
// RetractAssignment publish plan-visible state to the same directory
// using the identical SFTP upload pattern.
//
// # Usage
//
//	client, err := sshexec.NewClient(&sshexec.Config{
//	    Host: "rig-07.example", User: "planexec",
//	    AuthMethod: sshexec.AuthMethodKey, PrivateKeyPath: "/etc/planexec/id_ed25519",
//	}, executive, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect()
//	executive.SetExternalInterface(client)
package sshexec
