/*
Package shell implements the operator's interactive shell.

Commands are registered by name in a Registry at startup; the Shell loop
reads a line, splits it on whitespace and dispatches it. Errors are
printed and the loop goes on; exit, quit or EOF end it.

	r := shell.NewRegistry()
	if err := shell.Install(r, manager, health.ProbeConfig{Config: health.DefaultConfig()}); err != nil {
		return err
	}
	return shell.New(r, os.Stdin, os.Stdout).Run(ctx)

Listings are rendered as lipgloss tables.
*/
package shell
