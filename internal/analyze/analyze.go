// Package analyze aggregates a build's playbook output into per-host
// statistics and the set of identifiers of everything that failed.
package analyze

import (
	"github.com/zuulview/zuulview/pkg/domain"
)

// Report is the aggregated view of one output document.
type Report struct {
	// Hosts maps hostname to counters merged across all phases, plus the
	// failing results collected for that host.
	Hosts map[string]*domain.HostStats `json:"hosts"`
	// ErrorIDs holds the task, play and phase identifiers of every entity
	// under which some host result failed.
	ErrorIDs domain.ErrorIDSet `json:"-"`
}

// Analyze walks the output document once for statistics and once for error
// identifiers. It is a pure function over well-formed input and never fails;
// payloads that do not match the documented shape are a contract violation
// of the producing side.
func Analyze(output domain.OutputDocument) Report {
	return Report{
		Hosts:    mergeHostStats(output),
		ErrorIDs: collectErrorIDs(output),
	}
}

// mergeHostStats merges each host's per-phase counters additively. A host
// appearing in several phases of the same build gets the sum of its
// counters; its failed list accumulates only from phases that reported a
// non-zero failure count for it.
func mergeHostStats(output domain.OutputDocument) map[string]*domain.HostStats {
	hosts := make(map[string]*domain.HostStats)
	for _, phase := range output {
		for hostname, stats := range phase.Stats {
			hs, seen := hosts[hostname]
			if !seen {
				hs = &domain.HostStats{
					Changed:  stats.Changed,
					Failures: stats.Failures,
					OK:       stats.OK,
					Failed:   []domain.FailedTaskResult{},
				}
				hosts[hostname] = hs
			} else {
				hs.Changed += stats.Changed
				hs.Failures += stats.Failures
				hs.OK += stats.OK
			}
			if stats.Failures > 0 {
				hs.Failed = append(hs.Failed, failedResults(phase, hostname)...)
			}
		}
	}
	return hosts
}

// failedResults scans one phase's plays for results of the given host.
// A looped task contributes each failing sub-result; a plain task
// contributes itself when it carries a non-zero return code or a failed
// flag. Every contribution is annotated with the owning task's name.
func failedResults(phase domain.Phase, hostname string) []domain.FailedTaskResult {
	var out []domain.FailedTaskResult
	for _, play := range phase.Plays {
		for _, task := range play.Tasks {
			hr, ok := task.Hosts[hostname]
			if !ok {
				continue
			}
			if len(hr.Results) > 0 {
				for _, sub := range hr.Results {
					if sub.Failed {
						out = append(out, domain.FailedTaskResult{
							TaskName:   task.Task.Name,
							HostResult: sub,
						})
					}
				}
			} else if hr.RC != 0 || hr.Failed {
				out = append(out, domain.FailedTaskResult{
					TaskName:   task.Task.Name,
					HostResult: hr,
				})
			}
		}
	}
	return out
}

// collectErrorIDs records, for every host result that failed (directly or in
// any nested loop item), the owning task id, play id and composite phase id.
func collectErrorIDs(output domain.OutputDocument) domain.ErrorIDSet {
	ids := domain.NewErrorIDSet()
	for _, phase := range output {
		for _, play := range phase.Plays {
			for _, task := range play.Tasks {
				for _, hr := range task.Hosts {
					if !DidTaskFail(hr) {
						continue
					}
					ids.Add(domain.ErrorID{Kind: domain.ErrorIDTask, Value: task.Task.ID})
					ids.Add(domain.ErrorID{Kind: domain.ErrorIDPlay, Value: play.Play.ID})
					ids.Add(domain.ErrorID{Kind: domain.ErrorIDPhase, Value: phase.PhaseID()})
				}
			}
		}
	}
	return ids
}

// DidTaskFail reports whether a host result failed, either directly or
// through any of its nested per-item sub-results.
func DidTaskFail(hr domain.HostResult) bool {
	if hr.Failed {
		return true
	}
	for _, sub := range hr.Results {
		if DidTaskFail(sub) {
			return true
		}
	}
	return false
}

// TaskPathMatches reports whether ref is a prefix of test. An empty ref
// matches every path.
func TaskPathMatches(ref, test []string) bool {
	for i := range ref {
		if i >= len(test) {
			return false
		}
		if ref[i] != test[i] {
			return false
		}
	}
	return true
}
