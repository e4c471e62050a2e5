package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/xraph/stategraph/engine"
	"github.com/xraph/stategraph/provision"
	"github.com/xraph/stategraph/task"
)

// devSim fakes the slow parts of provisioning: account creation reports
// Wait=true for a few polls before the account comes up, directory group
// sync settles after one poll.
type devSim struct {
	mu    sync.Mutex
	polls map[string]int
}

func (s *devSim) poll(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[key]++
	return s.polls[key]
}

func accountName(input map[string]any) string {
	if info, ok := input["AccountInfo"].(map[string]any); ok {
		if name, ok := info["AccountName"].(string); ok {
			return name
		}
	}
	return ""
}

// devAccountID derives a stable fake 12-digit account ID from the name.
func devAccountID(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("%012d", h.Sum32())
}

// registerDevHandlers installs simulated handlers for every reference the
// shipped graphs use.
func registerDevHandlers(eng *engine.Engine) error {
	sim := &devSim{polls: make(map[string]int)}

	handlers := map[string]task.Handler{
		provision.HandlerCheckForRunningProcesses: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			// No concurrent factory processes in dev.
			return map[string]any{}, nil
		},
		provision.HandlerCreateAccount: func(_ context.Context, input map[string]any) (map[string]any, error) {
			name := accountName(input)
			if name == "" {
				return nil, task.InvalidInput("input has no AccountInfo.AccountName")
			}
			return map[string]any{"RequestId": "dev-" + name}, nil
		},
		provision.HandlerGetAccountStatus: func(_ context.Context, input map[string]any) (map[string]any, error) {
			name := accountName(input)
			if sim.poll("account:"+name) < 3 {
				return map[string]any{"Wait": true}, nil
			}
			return map[string]any{
				"Wait":      false,
				"AccountId": devAccountID(name),
				"Status":    "ACTIVE",
			}, nil
		},
		provision.HandlerCreateResources: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"Created": true}, nil
		},
		provision.HandlerValidateResources: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"Valid": true}, nil
		},
		provision.HandlerSendCompletionEmail: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"Sent": true}, nil
		},
		provision.HandlerSyncDirectoryGroups: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"Requested": true}, nil
		},
		provision.HandlerValidateGroupSync: func(_ context.Context, input map[string]any) (map[string]any, error) {
			name := accountName(input)
			if sim.poll("groups:"+name) < 2 {
				return map[string]any{"Wait": true}, nil
			}
			return map[string]any{"Wait": false}, nil
		},
		provision.HandlerAttachPermissionSets: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"Attached": true}, nil
		},
	}

	for ref, h := range handlers {
		if err := eng.RegisterHandler(ref, h); err != nil {
			return err
		}
	}
	return nil
}
