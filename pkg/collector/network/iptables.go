package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/coreos/go-iptables/iptables"

	"github.com/clueless-admin/cladm/pkg/response"
)

// Chain is one iptables chain with its policy (builtin chains only) and rule
// specs as rendered by iptables -S.
type Chain struct {
	Name   string   `json:"name"`
	Policy string   `json:"policy,omitempty"`
	Rules  []string `json:"rules"`
}

type iptablesData struct {
	Chains []Chain `json:"chains"`
}

// IPTablesFilter lists the filter table. Listing rules needs euid 0; without
// it the snapshot reports the permission requirement instead of attempting
// the privileged call.
func (c *Collector) IPTablesFilter(ctx context.Context) *response.Envelope {
	const subtype = "IPTABLES_FILTER"

	if c.euid == nil {
		c.euid = func() int { return 0 }
	}
	if c.euid() != 0 {
		return response.Failure(response.TaskTypeState, subtype, response.CodeExecutionFailure, "listing the iptables filter table requires root privileges")
	}

	ipt, err := iptables.New()
	if err != nil {
		return response.Failure(response.TaskTypeState, subtype, response.CodeToolNotAvailable, fmt.Sprintf("iptables not available: %v", err))
	}

	names, err := ipt.ListChains("filter")
	if err != nil {
		return response.Failure(response.TaskTypeState, subtype, response.CodeExecutionFailure, fmt.Sprintf("failed to list filter chains: %v", err))
	}

	chains := make([]Chain, 0, len(names))
	for _, name := range names {
		specs, err := ipt.List("filter", name)
		if err != nil {
			return response.Failure(response.TaskTypeState, subtype, response.CodeExecutionFailure, fmt.Sprintf("failed to list chain %s: %v", name, err))
		}
		chains = append(chains, parseChain(name, specs))
	}

	return response.Success(response.TaskTypeState, subtype, iptablesData{Chains: chains})
}

// parseChain splits iptables -S output into the chain policy ("-P" line,
// builtin chains only) and its rule specs ("-A" lines).
func parseChain(name string, specs []string) Chain {
	chain := Chain{Name: name, Rules: []string{}}
	for _, spec := range specs {
		fields := strings.Fields(spec)
		switch {
		case len(fields) >= 3 && fields[0] == "-P":
			chain.Policy = fields[2]
		case len(fields) >= 1 && fields[0] == "-A":
			chain.Rules = append(chain.Rules, spec)
		}
	}
	return chain
}
