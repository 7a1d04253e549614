package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/wayfarer-ai/itinerary/core"
)

// agentResult is one agent's outcome from a single Orchestrator run.
type agentResult struct {
	name  string
	patch *Patch
	err   error
}

// runPlan executes agents against a shared RunContext, respecting
// DependsOn order and running independently-ready agents concurrently,
// bounded by maxConcurrency. Adapted from the teacher's
// SmartExecutor.Execute in executor.go: a semaphore-gated goroutine per
// ready step, a deferred recover() converting a panic into a failed result
// instead of crashing the run, and polling a ready set until complete -
// here driven by AgentDAG instead of RoutingPlan's flat dependency scan.
//
// A failing Required() agent aborts the rest of the plan: agents that
// depend on it are marked skipped, no further agents are started, and
// runPlan returns after the in-flight goroutines drain. A failing
// non-required agent does not hold back the agents that depend on it.
func runPlan(ctx context.Context, agents []Agent, rc *RunContext, maxConcurrency int, logger core.Logger) ([]agentResult, error) {
	dag, err := NewAgentDAG(agents)
	if err != nil {
		return nil, fmt.Errorf("building agent plan: %w", err)
	}
	byName := make(map[string]Agent, len(agents))
	for _, a := range agents {
		byName[a.Name()] = a
	}

	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	sem := make(chan struct{}, maxConcurrency)

	var (
		mu      sync.Mutex
		results []agentResult
		wg      sync.WaitGroup
		aborted bool
	)

	for {
		if ctx.Err() != nil {
			wg.Wait()
			return results, ctx.Err()
		}

		ready := dag.GetReadyNodes()
		if len(ready) == 0 {
			if dag.IsComplete() {
				break
			}
			wg.Wait()
			continue
		}

		mu.Lock()
		if aborted {
			mu.Unlock()
			wg.Wait()
			break
		}
		mu.Unlock()

		for _, name := range ready {
			dag.MarkRunning(name)
			agent := byName[name]

			wg.Add(1)
			sem <- struct{}{}
			go func(agent Agent) {
				defer wg.Done()
				defer func() { <-sem }()

				res := runAgent(ctx, agent, rc, logger)

				mu.Lock()
				results = append(results, res)
				mu.Unlock()

				if res.err != nil && agent.Required() {
					dag.MarkFailed(agent.Name())
					mu.Lock()
					aborted = true
					mu.Unlock()
				} else {
					// A non-required agent's failure stays in its result;
					// its dependents still become eligible to run.
					dag.MarkCompleted(agent.Name())
				}
			}(agent)
		}
		wg.Wait()
	}

	if aborted {
		if skipped := dag.SkippedNames(); len(skipped) > 0 && logger != nil {
			logger.Warn("orchestration plan aborted, skipping remaining agents", map[string]interface{}{"skipped": skipped})
		}
		return results, core.NewFrameworkError("orchestration.runPlan", "RequiredAgentFailed", core.ErrRequiredAgentFailed)
	}
	return results, nil
}

// runAgent invokes a single agent's Execute, converting a panic into a
// failed agentResult rather than letting it crash the run.
func runAgent(ctx context.Context, agent Agent, rc *RunContext, logger core.Logger) (result agentResult) {
	result.name = agent.Name()

	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("agent %q panicked: %v", agent.Name(), r)
			if logger != nil {
				logger.Error("agent panicked", map[string]interface{}{"agent": agent.Name(), "panic": fmt.Sprintf("%v", r)})
			}
		}
	}()

	patch, err := agent.Execute(ctx, rc)
	result.patch = patch
	result.err = err
	return result
}
