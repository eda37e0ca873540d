// Package sysmgr implements C-Star's System Manager: a single
// process-wide instance that classifies the host, selects a scheduler,
// and exposes queue limits and the compiler family for model builds.
package sysmgr

import (
	"strings"

	"github.com/me/gowe/pkg/model"
)

// HostKind classifies the machine cstar is running on.
type HostKind string

const (
	HostGeneric HostKind = "generic-unix"
	HostMacOSArm HostKind = "macos-arm"
	HostSlurm    HostKind = "slurm-cluster"
	HostPBS      HostKind = "pbs-cluster"
)

// Manager is the System Manager. Construct it once per process with
// Detect; every field is resolved at construction time except
// account/queue, which are validated lazily at submission time.
type Manager struct {
	Host       HostKind
	Scheduler  model.HandlerKind
	Compiler   string
	Queues     *QueueTable

	env func(string) string
}

// Detect classifies the host from the given environment lookup and
// hostname, the same inputs the original Python System Manager probes
// (SLURM_CONF/PBS_DEFAULT presence, uname/hostname suffix).
func Detect(env func(string) string, hostname string) *Manager {
	m := &Manager{env: env, Queues: DefaultQueueTable()}

	switch {
	case env("SLURM_CONF") != "" || env("SLURM_CLUSTER_NAME") != "":
		m.Host = HostSlurm
		m.Scheduler = model.HandlerSlurm
		m.Compiler = "intel"
	case env("PBS_DEFAULT") != "" || env("PBS_SERVER") != "":
		m.Host = HostPBS
		m.Scheduler = model.HandlerPBS
		m.Compiler = "intel"
	case strings.Contains(strings.ToLower(hostname), "arm") || env("CSTAR_MACOS_ARM") == "1":
		m.Host = HostMacOSArm
		m.Scheduler = model.HandlerLocal
		m.Compiler = "gnu"
	default:
		m.Host = HostGeneric
		m.Scheduler = model.HandlerLocal
		m.Compiler = "gnu"
	}

	return m
}

// IsSchedulerHost reports whether submission requires a batch scheduler.
func (m *Manager) IsSchedulerHost() bool {
	return m.Host == HostSlurm || m.Host == HostPBS
}

// RequireAccountAndQueue validates that the scheduler-specific account
// and queue environment variables are set. Called at submission time,
// never at Detect time, per spec.
func (m *Manager) RequireAccountAndQueue(account, queue string) error {
	if !m.IsSchedulerHost() {
		return nil
	}
	if account == "" {
		return &model.ConfigurationError{Var: accountVarFor(m.Host), Message: "required on a scheduler host"}
	}
	if queue == "" {
		return &model.ConfigurationError{Var: queueVarFor(m.Host), Message: "required on a scheduler host"}
	}
	return nil
}

func accountVarFor(h HostKind) string {
	if h == HostPBS {
		return "CSTAR_PBS_ACCOUNT"
	}
	return "CSTAR_SLURM_ACCOUNT"
}

func queueVarFor(h HostKind) string {
	if h == HostPBS {
		return "CSTAR_PBS_QUEUE"
	}
	return "CSTAR_SLURM_QUEUE"
}
