package client

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/glestaris/ice/pkg/types"
)

// AgentURL is where booted instances download the self-registration agent
var AgentURL = "https://github.com/glestaris/ice/releases/download/v2.1.0/ice-agent"

var safeShellWord = regexp.MustCompile(`^[A-Za-z0-9_.,:/=@%+-]+$`)

func shellQuote(s string) string {
	if safeShellWord.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// CompileUserData returns the boot script that downloads the agent and
// registers the instance under sessionID with the registry at endpoint.
// The session id is a grouping token, not a secret; the script embeds
// nothing else.
func CompileUserData(endpoint, sessionID string, tags map[string]string) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh -ex\n")
	fmt.Fprintf(&b, "wget %s -O ./ice-agent\n", shellQuote(AgentURL))
	b.WriteString("chmod +x ./ice-agent\n")
	fmt.Fprintf(&b, "./ice-agent register-self --api-endpoint %s --session-id %s",
		shellQuote(endpoint), shellQuote(sessionID))

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " --tag %s", shellQuote(k+"="+tags[k]))
	}
	b.WriteString("\n")
	return b.String()
}

// CompileUserData compiles the boot script for session against this
// client's registry endpoint
func (c *Client) CompileUserData(session *types.Session, tags map[string]string) (string, error) {
	if session == nil || session.ID == "" {
		return "", fmt.Errorf("session has not been submitted")
	}
	return CompileUserData(c.endpoint, session.ID, tags), nil
}
