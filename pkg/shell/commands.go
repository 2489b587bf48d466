package shell

import (
	"context"
	"fmt"
	"io"

	"github.com/glestaris/ice/pkg/health"
	"github.com/glestaris/ice/pkg/session"
	"github.com/glestaris/ice/pkg/types"
)

// Install registers the session commands backed by m
func Install(r *Registry, m *session.Manager, probe health.ProbeConfig) error {
	c := &commands{manager: m, probe: probe}
	for _, cmd := range []*Command{
		{Name: "start", Usage: "start [retain]", Help: "Start a new session", Handler: c.start},
		{Name: "attach", Usage: "attach <session-id>", Help: "Attach to an existing session (retained)", Handler: c.attach},
		{Name: "retain", Usage: "retain", Help: "Keep the current session after exit", Handler: c.retain},
		{Name: "close", Usage: "close", Help: "Close the current session", Handler: c.close},
		{Name: "session", Usage: "session", Help: "Show the current session", Handler: c.session},
		{Name: "sessions", Usage: "sessions", Help: "List all sessions", Handler: c.sessions},
		{Name: "ls", Aliases: []string{"instances"}, Usage: "ls", Help: "List the session's instances", Handler: c.list},
		{Name: "show", Usage: "show <instance-id>", Help: "Show one instance", Handler: c.show},
		{Name: "del", Usage: "del <instance-id>...", Help: "Delete instances of the current session", Handler: c.del},
		{Name: "hosts", Usage: "hosts", Help: "Print user@host of every instance", Handler: c.hosts},
		{Name: "probe", Usage: "probe", Help: "Check SSH reachability of every instance", Handler: c.probeAll},
		{Name: "user-data", Usage: "user-data [key=value...]", Help: "Print the instance bootstrap script", Handler: c.userData},
		{Name: "my-ip", Usage: "my-ip", Help: "Print this host's address as seen by the registry", Handler: c.myIP},
		{Name: "ping", Usage: "ping", Help: "Check that the registry is reachable", Handler: c.ping},
	} {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

type commands struct {
	manager *session.Manager
	probe   health.ProbeConfig
}

func (c *commands) start(_ context.Context, out io.Writer, args []string) error {
	sess, err := c.manager.Start()
	if err != nil {
		return err
	}
	if len(args) > 0 && args[0] == "retain" {
		if err := c.manager.Retain(); err != nil {
			return err
		}
	}
	fmt.Fprintln(out, sess.ID)
	return nil
}

func (c *commands) attach(_ context.Context, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: attach <session-id>")
	}
	sess, err := c.manager.Attach(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, sess.ID)
	return nil
}

func (c *commands) retain(context.Context, io.Writer, []string) error {
	return c.manager.Retain()
}

func (c *commands) close(context.Context, io.Writer, []string) error {
	return c.manager.Close()
}

func (c *commands) session(_ context.Context, out io.Writer, _ []string) error {
	sess := c.manager.Current()
	if sess == nil {
		return session.ErrNoSession
	}
	fmt.Fprintln(out, RenderSessions([]*types.Session{sess}))
	if c.manager.Retained() {
		fmt.Fprintln(out, "retained")
	}
	return nil
}

func (c *commands) sessions(_ context.Context, out io.Writer, _ []string) error {
	sessions, err := c.manager.Client().ListSessions(nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, RenderSessions(sessions))
	return nil
}

func (c *commands) list(_ context.Context, out io.Writer, _ []string) error {
	instances, err := c.manager.Instances()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, RenderInstances(instances))
	return nil
}

func (c *commands) show(_ context.Context, out io.Writer, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: show <instance-id>")
	}
	inst, err := c.manager.Client().GetInstance(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, RenderInstance(inst))
	return nil
}

func (c *commands) del(_ context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: del <instance-id>...")
	}
	if err := c.manager.DeleteInstances(args...); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %d instance(s)\n", len(args))
	return nil
}

func (c *commands) hosts(_ context.Context, out io.Writer, _ []string) error {
	hosts, err := c.manager.Hosts()
	if err != nil {
		return err
	}
	for _, h := range hosts {
		fmt.Fprintln(out, h)
	}
	return nil
}

func (c *commands) probeAll(ctx context.Context, out io.Writer, _ []string) error {
	instances, err := c.manager.Instances()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, RenderProbes(health.Probe(ctx, instances, c.probe)))
	return nil
}

func (c *commands) userData(_ context.Context, out io.Writer, args []string) error {
	tags, err := types.ParseTags(args)
	if err != nil {
		return err
	}
	script, err := c.manager.UserData(tags)
	if err != nil {
		return err
	}
	fmt.Fprint(out, script)
	return nil
}

func (c *commands) myIP(_ context.Context, out io.Writer, _ []string) error {
	ip, err := c.manager.Client().GetMyIP()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ip)
	return nil
}

func (c *commands) ping(_ context.Context, out io.Writer, _ []string) error {
	if !c.manager.Client().Ping() {
		return fmt.Errorf("registry at %s is not responding", c.manager.Client().Endpoint())
	}
	fmt.Fprintln(out, "pong")
	return nil
}
